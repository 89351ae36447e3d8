package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/reminder"
	"github.com/dukerupert/homecal/internal/store"
)

type ReminderHandler struct {
	calendars *store.CalendarStore
	scheduler *reminder.Scheduler
	logger    *slog.Logger
}

func NewReminderHandler(cs *store.CalendarStore, scheduler *reminder.Scheduler, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{calendars: cs, scheduler: scheduler, logger: logger}
}

type scheduleRequest struct {
	CalendarID      string `json:"calendarId"`
	EventID         string `json:"eventId"`
	ReminderMinutes []int  `json:"reminderMinutes"`
}

// Schedule handles POST /api/reminders/schedule
func (h *ReminderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.CalendarID == "" || req.EventID == "" {
		writeError(w, h.logger, apperr.Invalid("calendarId and eventId are required"))
		return
	}

	if _, err := ownedCalendar(r, h.calendars, req.CalendarID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	reminders, err := h.scheduler.Schedule(r.Context(), req.CalendarID, req.EventID, req.ReminderMinutes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "scheduled", "count": len(reminders)})
}

// ownedCalendar loads a calendar of the caller's household. Calendars of
// other households are reported as not found.
func ownedCalendar(r *http.Request, cs *store.CalendarStore, id string) (*model.Calendar, error) {
	cal, err := cs.GetCalendar(r.Context(), id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load calendar", err)
	}
	if cal == nil || cal.HouseholdID != auth.HouseholdID(r.Context()) {
		return nil, apperr.Missing("calendar %s not found", id)
	}
	return cal, nil
}
