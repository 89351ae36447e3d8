package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/birthday"
	"github.com/dukerupert/homecal/internal/store"
)

type BirthdayHandler struct {
	birthdays *store.BirthdayStore
	loc       *time.Location
	logger    *slog.Logger
}

func NewBirthdayHandler(bs *store.BirthdayStore, loc *time.Location, logger *slog.Logger) *BirthdayHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BirthdayHandler{birthdays: bs, loc: loc, logger: logger}
}

// Create handles POST /api/birthdays. The next occurrence is filled in
// immediately rather than waiting for the nightly recompute.
func (h *BirthdayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		BirthDate string `json:"birthDate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Invalid("name is required"))
		return
	}
	birthDate, err := time.Parse(time.DateOnly, req.BirthDate)
	if err != nil {
		writeError(w, h.logger, apperr.Invalid("birthDate must be YYYY-MM-DD"))
		return
	}

	b, err := h.birthdays.Create(r.Context(), auth.HouseholdID(r.Context()), req.Name, birthDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	next, age := birthday.NextOccurrence(birthDate, time.Now(), h.loc)
	if err := h.birthdays.SetNextOccurrence(r.Context(), b.ID, next, age); err != nil {
		writeError(w, h.logger, err)
		return
	}
	b.NextOccurrence = &next
	b.UpcomingAge = &age

	writeJSON(w, http.StatusCreated, b)
}
