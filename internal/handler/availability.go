package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/availability"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
)

const minutesPerDay = 24 * 60

type AvailabilityHandler struct {
	store      *store.AvailabilityStore
	aggregator *availability.Aggregator
	logger     *slog.Logger
}

func NewAvailabilityHandler(as *store.AvailabilityStore, agg *availability.Aggregator, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{store: as, aggregator: agg, logger: logger}
}

func parseDateKey(r *http.Request) (string, error) {
	key := r.PathValue("dateKey")
	if _, err := time.Parse("20060102", key); err != nil || len(key) != 8 {
		return "", apperr.Invalid("dateKey must be YYYYMMDD")
	}
	return key, nil
}

func validateSlots(slots []model.Slot) error {
	for _, s := range slots {
		if s.StartMinutes < 0 || s.EndMinutes > minutesPerDay || s.StartMinutes >= s.EndMinutes {
			return apperr.Invalid("slot %d-%d must satisfy 0 <= start < end <= %d", s.StartMinutes, s.EndMinutes, minutesPerDay)
		}
	}
	return nil
}

// Put handles PUT /api/availability/{dateKey}
func (h *AvailabilityHandler) Put(w http.ResponseWriter, r *http.Request) {
	dateKey, err := parseDateKey(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req struct {
		Slots []model.Slot `json:"slots"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateSlots(req.Slots); err != nil {
		writeError(w, h.logger, err)
		return
	}

	before, after, err := h.store.Put(r.Context(), model.AvailabilityRecord{
		UserID:      auth.UserID(r.Context()),
		HouseholdID: auth.HouseholdID(r.Context()),
		DateKey:     dateKey,
		Slots:       req.Slots,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.aggregator.HandleChange(r.Context(), before, after); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, after)
}

// Delete handles DELETE /api/availability/{dateKey}
func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dateKey, err := parseDateKey(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	before, err := h.store.Delete(r.Context(), auth.UserID(r.Context()), auth.HouseholdID(r.Context()), dateKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if before != nil {
		if _, err := h.aggregator.HandleChange(r.Context(), before, nil); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/availability/{dateKey}/summary
func (h *AvailabilityHandler) Summary(w http.ResponseWriter, r *http.Request) {
	dateKey, err := parseDateKey(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sum, err := h.store.GetSummary(r.Context(), auth.HouseholdID(r.Context()), dateKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if sum == nil {
		writeError(w, h.logger, apperr.Missing("no availability for %s", dateKey))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
