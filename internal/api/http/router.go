// Package http exposes the ledger services as a JSON API under /api/v1.
package http

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"creditline-backend/internal/security"
	"creditline-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Services bundles what the API delegates to
type Services struct {
	Transactions service.TransactionService
	Activities   service.ActivityService
	Messaging    service.MessagingService
	Reports      service.ReportingService
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func() error

type Handler struct {
	transactions service.TransactionService
	activities   service.ActivityService
	messaging    service.MessagingService
	reports      service.ReportingService
	tokens       security.TokenManager
	validate     *validator.Validate
	health       HealthCheck
	loc          *time.Location
}

// NewHandler wires the API. health may be nil.
func NewHandler(svcs Services, tokens security.TokenManager, health HealthCheck) *Handler {
	return &Handler{
		transactions: svcs.Transactions,
		activities:   svcs.Activities,
		messaging:    svcs.Messaging,
		reports:      svcs.Reports,
		tokens:       tokens,
		validate:     newValidator(),
		health:       health,
		loc:          time.UTC,
	}
}

// newValidator reports json field names and validates decimals as numbers
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Router mounts every route. Middleware order: request context, metrics and
// access log, then authentication.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestContext, instrument, h.authenticate)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Purchases and disputes
	api.HandleFunc("/transactions", h.createTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", h.getTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/process", h.processPayment).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}/refund", h.refundTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}/chargebacks", h.createChargeback).Methods(http.MethodPost)
	api.HandleFunc("/chargebacks/{id}/resolve", h.resolveChargeback).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id}/transactions", h.listCustomerTransactions).Methods(http.MethodGet)

	// Billing hook and activities
	api.HandleFunc("/conversations/{id}/free-reply", h.sendFreeReply).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/paid-reply", h.sendPaidReply).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/marketing", h.sendMarketing).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", h.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/activities", h.recordActivity).Methods(http.MethodPost)
	api.HandleFunc("/activities/{id}", h.getActivity).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/views", h.recordProfileView).Methods(http.MethodPost)

	// Reports
	api.HandleFunc("/operators/{id}/earnings", h.operatorEarnings).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}/spending", h.customerSpending).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}/most-viewed", h.mostViewed).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/viewers", h.profileViewers).Methods(http.MethodGet)
	api.HandleFunc("/date-ranges/{preset}", h.dateRangePreset).Methods(http.MethodGet)
	api.HandleFunc("/admin/transactions/stats", h.transactionStats).Methods(http.MethodGet)
	api.HandleFunc("/admin/chargebacks", h.allChargebacks).Methods(http.MethodGet)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
