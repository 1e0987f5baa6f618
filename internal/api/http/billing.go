package http

import (
	"net/http"

	"creditline-backend/internal/domain"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type replyRequest struct {
	OperatorID string `json:"operator_id"`
	Content    string `json:"content" validate:"required,max=4000"`
}

type paidReplyRequest struct {
	OperatorID string          `json:"operator_id"`
	Content    string          `json:"content" validate:"required,max=4000"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
}

type recordActivityRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	OperatorID string          `json:"operator_id" validate:"required"`
	Type       string          `json:"type" validate:"required"`
	SiteDomain string          `json:"site_domain" validate:"omitempty,hostname"`
	Amount     decimal.Decimal `json:"amount" validate:"gte=0"`
}

func (h *Handler) sendFreeReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	operatorID, err := actingID(r.Context(), req.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sent, err := h.messaging.SendFreeReply(r.Context(), operatorID, mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sent)
}

// sendPaidReply charges the fixed paid-message price when price is omitted
func (h *Handler) sendPaidReply(w http.ResponseWriter, r *http.Request) {
	var req paidReplyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	operatorID, err := actingID(r.Context(), req.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sent, err := h.messaging.SendPaidReply(r.Context(), operatorID, mux.Vars(r)["id"], req.Content, req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sent)
}

func (h *Handler) sendMarketing(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	operatorID, err := actingID(r.Context(), req.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sent, err := h.messaging.SendMarketing(r.Context(), operatorID, mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sent)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messaging.ListMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// recordActivity bills any customer, so only service and admin tokens reach
// it. Operators are billed through the conversation routes instead.
func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	typ, err := domain.ParseActivityType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	act, err := h.activities.RecordActivity(r.Context(), domain.ActivityRequest{
		CustomerID: req.CustomerID,
		OperatorID: req.OperatorID,
		Type:       typ,
		SiteDomain: req.SiteDomain,
		Amount:     req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	act, err := h.activities.GetActivity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := authorizeSubject(r.Context(), act.CustomerID, act.OperatorID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// recordProfileView always records the caller as the viewer
func (h *Handler) recordProfileView(w http.ResponseWriter, r *http.Request) {
	viewerID, err := actingID(r.Context(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.activities.RecordProfileView(r.Context(), viewerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}
