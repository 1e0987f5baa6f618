package http

import (
	"net/http"
	"strconv"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/utils"

	"github.com/gorilla/mux"
)

// dateRange reads start/end (yyyy-mm-dd) or a preset name; neither means
// the monthly preset.
func (h *Handler) dateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	if start, end := q.Get("start"), q.Get("end"); start != "" || end != "" {
		return utils.ParseDateRange(start, end, h.loc)
	}
	return h.reports.GetDateRangePreset(q.Get("preset")), nil
}

func activityFilter(r *http.Request) (domain.ActivityFilter, error) {
	q := r.URL.Query()
	filter := domain.ActivityFilter{
		CustomerID: q.Get("customer_id"),
		OperatorID: q.Get("operator_id"),
	}
	if raw := q.Get("type"); raw != "" {
		typ, err := domain.ParseActivityType(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = typ
	}
	return filter, nil
}

func (h *Handler) operatorEarnings(w http.ResponseWriter, r *http.Request) {
	operatorID := mux.Vars(r)["id"]
	if err := authorizeSubject(r.Context(), operatorID); err != nil {
		writeError(w, r, err)
		return
	}
	dr, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := activityFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.reports.GetOperatorEarnings(r.Context(), operatorID, dr, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) customerSpending(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	if err := authorizeSubject(r.Context(), customerID); err != nil {
		writeError(w, r, err)
		return
	}
	dr, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := activityFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.reports.GetCustomerSpending(r.Context(), customerID, dr, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) mostViewed(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	if err := authorizeSubject(r.Context(), customerID); err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, domain.Validationf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	views, err := h.reports.GetMostViewedOperators(r.Context(), customerID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operators": views, "count": len(views)})
}

func (h *Handler) profileViewers(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["id"]
	if err := authorizeSubject(r.Context(), profileID); err != nil {
		writeError(w, r, err)
		return
	}
	dr, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	viewers, err := h.reports.GetProfileViewers(r.Context(), profileID, dr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewers": viewers, "count": len(viewers)})
}

func (h *Handler) dateRangePreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["preset"]
	writeJSON(w, http.StatusOK, map[string]any{
		"preset": name,
		"known":  utils.IsPreset(name),
		"range":  h.reports.GetDateRangePreset(name),
	})
}

func (h *Handler) transactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.GetTransactionStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) allChargebacks(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetAllChargebacks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
