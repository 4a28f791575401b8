package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gildgarde/backend-boutique/internal/common"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Service *Service
}

// CreateSession handles POST /api/v1/checkout/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	redirect, err := h.Service.CreateSession(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]string{
			"session_id": redirect.SessionID,
			"url":        redirect.URL,
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusBadGateway, "PAYMENT_PROVIDER", "payment provider unavailable", nil)
}
