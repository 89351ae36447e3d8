package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
)

type DeviceHandler struct {
	tokens         *store.DeviceTokenStore
	vapidPublicKey string
	logger         *slog.Logger
}

func NewDeviceHandler(ts *store.DeviceTokenStore, vapidPublicKey string, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{tokens: ts, vapidPublicKey: vapidPublicKey, logger: logger}
}

type registerDeviceRequest struct {
	Token      string `json:"token"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"deviceName"`
}

// Register handles POST /api/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Token == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, h.logger, apperr.Invalid("token, p256dh, and auth are required"))
		return
	}
	if !strings.HasPrefix(req.Token, "https://") {
		writeError(w, h.logger, apperr.Invalid("token must be an https push endpoint"))
		return
	}

	tok, err := h.tokens.Register(r.Context(), model.DeviceToken{
		UserID:     auth.UserID(r.Context()),
		Token:      req.Token,
		P256dhKey:  req.P256dh,
		AuthKey:    req.Auth,
		DeviceName: req.DeviceName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

// Unregister handles DELETE /api/devices
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Token == "" {
		writeError(w, h.logger, apperr.Invalid("token is required"))
		return
	}

	if err := h.tokens.DeleteForUser(r.Context(), auth.UserID(r.Context()), req.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey handles GET /api/devices/vapid-key
func (h *DeviceHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidPublicKey})
}
