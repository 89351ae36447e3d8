package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/store"
)

const inviteTTL = 7 * 24 * time.Hour

// Mailer delivers invitation emails.
type Mailer interface {
	Configured() bool
	SendInvite(ctx context.Context, toEmail, inviteID string, expiresAt time.Time) error
}

type InviteHandler struct {
	invites *store.InviteStore
	mailer  Mailer
	logger  *slog.Logger
}

// NewInviteHandler creates the handler. mailer may be nil.
func NewInviteHandler(is *store.InviteStore, mailer Mailer, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{invites: is, mailer: mailer, logger: logger}
}

// Create handles POST /api/invites. A failed email is logged; the invite is
// still created. Expired invites are removed by the retention sweep.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, h.logger, apperr.Invalid("invalid email address"))
		return
	}

	inv, err := h.invites.Create(r.Context(), auth.HouseholdID(r.Context()), strings.ToLower(addr.Address), time.Now().Add(inviteTTL))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.mailer != nil && h.mailer.Configured() {
		if err := h.mailer.SendInvite(r.Context(), inv.Email, inv.ID, inv.ExpiresAt); err != nil {
			h.logger.Error("send invite email", "invite_id", inv.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, inv)
}
