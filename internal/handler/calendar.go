package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/ics"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
	ws "github.com/dukerupert/homecal/internal/websocket"
)

// exportLimit caps the number of events written to one export.
const exportLimit = 200

// Fetcher retrieves a remote interchange document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type CalendarHandler struct {
	calendars  *store.CalendarStore
	fetcher    Fetcher
	serializer *ics.Serializer
	hub        ws.Broadcaster
	logger     *slog.Logger
}

func NewCalendarHandler(cs *store.CalendarStore, fetcher Fetcher, serializer *ics.Serializer, hub ws.Broadcaster, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{calendars: cs, fetcher: fetcher, serializer: serializer, hub: hub, logger: logger}
}

// CreateCalendar handles POST /api/calendars
func (h *CalendarHandler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
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

	cal, err := h.calendars.CreateCalendar(r.Context(), auth.HouseholdID(r.Context()), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cal)
}

type eventRequest struct {
	Title          string   `json:"title"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Location       string   `json:"location"`
	Notes          string   `json:"notes"`
	ParticipantIDs []string `json:"participantIds"`
	Category       string   `json:"category"`
	Visibility     string   `json:"visibility"`
	RecurrenceRule string   `json:"recurrenceRule"`
}

func (req *eventRequest) toEvent(cal *model.Calendar) (model.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return model.Event{}, apperr.Invalid("title is required")
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return model.Event{}, apperr.Invalid("start must be RFC3339 format")
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return model.Event{}, apperr.Invalid("end must be RFC3339 format")
	}
	if !start.Before(end) {
		return model.Event{}, apperr.Invalid("start must be before end")
	}
	if req.RecurrenceRule != "" {
		if err := ics.ValidateRule(req.RecurrenceRule); err != nil {
			return model.Event{}, apperr.Invalid("invalid recurrenceRule: %v", err)
		}
	}
	switch req.Visibility {
	case "", "household", "private":
	default:
		return model.Event{}, apperr.Invalid("visibility must be household or private")
	}

	return model.Event{
		CalendarID:     cal.ID,
		HouseholdID:    cal.HouseholdID,
		Title:          title,
		Start:          start,
		End:            end,
		Location:       req.Location,
		Notes:          req.Notes,
		ParticipantIDs: req.ParticipantIDs,
		Category:       req.Category,
		Visibility:     req.Visibility,
		RecurrenceRule: req.RecurrenceRule,
	}, nil
}

// CreateEvent handles POST /api/calendars/{calendarId}/events
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	cal, err := ownedCalendar(r, h.calendars, r.PathValue("calendarId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	e, err := req.toEvent(cal)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := h.calendars.CreateEvent(r.Context(), e)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage(cal.HouseholdID, "event", "created", event.ID, nil))
	writeJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /api/calendars/{calendarId}/events/{eventId}
func (h *CalendarHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	cal, err := ownedCalendar(r, h.calendars, r.PathValue("calendarId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := h.calendars.GetEvent(r.Context(), cal.ID, r.PathValue("eventId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if event == nil {
		writeError(w, h.logger, apperr.Missing("event not found"))
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/calendars/{calendarId}/events/{eventId}
func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	cal, err := ownedCalendar(r, h.calendars, r.PathValue("calendarId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	eventID := r.PathValue("eventId")
	if err := h.calendars.DeleteEvent(r.Context(), cal.ID, eventID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage(cal.HouseholdID, "event", "deleted", eventID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/calendars/{calendarId}/import
func (h *CalendarHandler) Import(w http.ResponseWriter, r *http.Request) {
	cal, err := ownedCalendar(r, h.calendars, r.PathValue("calendarId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, h.logger, apperr.Invalid("url must be an http or https URL"))
		return
	}

	doc, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.Internal, "fetch calendar", err))
		return
	}

	parsed := ics.Parse(doc)
	events := make([]model.Event, 0, len(parsed))
	for _, p := range parsed {
		events = append(events, model.Event{
			CalendarID:     cal.ID,
			HouseholdID:    cal.HouseholdID,
			Title:          p.Summary,
			Start:          p.Start,
			End:            p.End,
			Location:       p.Location,
			Notes:          p.Description,
			ParticipantIDs: []string{},
			Category:       model.CategoryImport,
		})
	}

	if len(events) > 0 {
		if _, err := h.calendars.CreateEvents(r.Context(), events); err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.hub.Broadcast(ws.NewMessage(cal.HouseholdID, "calendar", "imported", cal.ID,
			map[string]any{"count": len(events)}))
	}

	h.logger.Info("calendar imported", "calendar_id", cal.ID, "events", len(events))
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(events)})
}

// Export handles GET /api/calendars/{calendarId}/export
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	cal, err := ownedCalendar(r, h.calendars, r.PathValue("calendarId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	events, err := h.calendars.ListEvents(r.Context(), cal.ID, exportLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", cal.ID+".ics"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.serializer.Serialize(events)))
}
