package register

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/violet-hub/keygate/api/common"
	"github.com/violet-hub/keygate/internal/registration"
)

type registerRequest struct {
	Key        string `json:"key"`
	HardwareID string `json:"hwid"`
}

// Handler serves the client registration endpoint.
type Handler struct {
	svc *registration.Service
}

// NewHandler creates the registration handler.
func NewHandler(svc *registration.Service) *Handler {
	return &Handler{svc: svc}
}

// Register handles POST /register: binds the submitted HWID to the key, or
// reports why it cannot.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	// Binding errors fall through to the missing-field check so that a bad
	// body and an empty body get the same answer.
	_ = c.ShouldBindJSON(&req)

	status, err := h.svc.Register(c.Request.Context(), req.Key, req.HardwareID)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrInvalidRequest):
			common.RespondError(c, http.StatusBadRequest, "Missing key or HWID")
		case errors.Is(err, registration.ErrKeyNotFound):
			common.RespondError(c, http.StatusNotFound, "Key not found")
		case errors.Is(err, registration.ErrKeyExpired):
			common.RespondError(c, http.StatusForbidden, "Key is expired. Request a new key with /getkey.")
		case errors.Is(err, registration.ErrHardwareMismatch):
			common.RespondError(c, http.StatusForbidden, "HWID mismatch! Kick the player.")
		default:
			common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	switch status {
	case registration.StatusAlreadyRegistered:
		common.RespondSuccess(c, "HWID already registered.")
	default:
		common.RespondSuccess(c, "HWID registered!")
	}
}
