package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// statusFor maps ledger errors onto HTTP status codes
func statusFor(err error) int {
	var perr *domain.ProcessorError
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidChargebackAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrChargebackNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientCredits),
		errors.Is(err, domain.ErrNoFreeMessages):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrProcessorTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.As(err, &perr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err, hiding internals behind a generic 500
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation error", Code: "validation", Details: details})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "route", routeTemplate(r), "error", err)
		writeErrorMessage(w, status, "internal", "internal server error")
		return
	}

	code := metrics.RejectionReason(err)
	switch status {
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusGatewayTimeout:
		code = "processor_timeout"
	case http.StatusBadGateway:
		code = "processor_error"
	}
	writeErrorMessage(w, status, code, err.Error())
}

// decode reads a JSON body and runs struct validation on it
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("malformed request body: %v", err)
	}
	return h.validate.Struct(dst)
}
