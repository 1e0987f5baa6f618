package http

import (
	"net/http"
	"strconv"
	"strings"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	CustomerID    string `json:"customer_id"`
	PackageID     string `json:"package_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=stripe sandbox"`
}

type processPaymentRequest struct {
	Token       string            `json:"token" validate:"required"`
	ReturnURL   string            `json:"return_url" validate:"omitempty,url"`
	Description string            `json:"description" validate:"max=500"`
	Metadata    map[string]string `json:"metadata" validate:"max=20"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type chargebackRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason          string          `json:"reason" validate:"required,max=500"`
	ProcessorCaseID string          `json:"processor_case_id" validate:"max=100"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

type resolveChargebackRequest struct {
	Resolution string          `json:"resolution" validate:"required,oneof=won lost partial"`
	Adjustment decimal.Decimal `json:"adjustment" validate:"gte=0"`
	Notes      string          `json:"notes" validate:"max=2000"`
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customerID, err := actingID(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := h.transactions.CreateTransaction(r.Context(), customerID, req.PackageID, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// ownedTransaction loads a transaction the caller is allowed to see
func (h *Handler) ownedTransaction(r *http.Request) (*domain.Transaction, error) {
	txn, err := h.transactions.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if err := authorizeSubject(r.Context(), txn.CustomerID); err != nil {
		return nil, err
	}
	return txn, nil
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.ownedTransaction(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// processPayment answers 200 for both completed and declined charges; the
// body's status tells them apart.
func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := h.ownedTransaction(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err = h.transactions.ProcessPayment(r.Context(), txn.ID, domain.PaymentData{
		Token:       req.Token,
		ReturnURL:   req.ReturnURL,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) refundTransaction(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := h.transactions.RefundTransaction(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) createChargeback(w http.ResponseWriter, r *http.Request) {
	var req chargebackRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cb, err := h.transactions.CreateChargeback(r.Context(), mux.Vars(r)["id"], req.Reason, req.Amount, domain.ChargebackMeta{
		ProcessorCaseID: req.ProcessorCaseID,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cb)
}

func (h *Handler) resolveChargeback(w http.ResponseWriter, r *http.Request) {
	var req resolveChargebackRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cb, err := h.transactions.ResolveChargeback(r.Context(), mux.Vars(r)["id"],
		domain.ChargebackStatus(req.Resolution), req.Adjustment, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cb)
}

// listCustomerTransactions accepts status=a,b, limit, start and end (yyyy-mm-dd)
func (h *Handler) listCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	if err := authorizeSubject(r.Context(), customerID); err != nil {
		writeError(w, r, err)
		return
	}

	filter, err := h.transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := h.transactions.ListCustomerTransactions(r.Context(), customerID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns, "count": len(txns)})
}

func (h *Handler) transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	var filter domain.TransactionFilter

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.TransactionStatus(strings.TrimSpace(s)))
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, domain.Validationf("invalid limit %q", raw)
		}
		filter.Limit = n
	}
	if start, end := q.Get("start"), q.Get("end"); start != "" || end != "" {
		dr, err := utils.ParseDateRange(start, end, h.loc)
		if err != nil {
			return filter, err
		}
		filter.Start, filter.End = &dr.Start, &dr.End
	}
	return filter, nil
}
