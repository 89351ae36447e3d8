package ics

import (
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/teambition/rrule-go"
)

// Serializer writes events as an iCalendar document.
type Serializer struct {
	productID string
	uidDomain string
	logger    *slog.Logger
	now       func() time.Time
}

func NewSerializer(productID, uidDomain string, logger *slog.Logger) *Serializer {
	return &Serializer{
		productID: productID,
		uidDomain: uidDomain,
		logger:    logger,
		now:       time.Now,
	}
}

// Serialize emits one VEVENT per event in the given order. LOCATION,
// DESCRIPTION and RRULE are written only when set on the event; a recurrence
// rule that does not parse is left out.
func (s *Serializer) Serialize(events []model.Event) string {
	cal := ical.NewCalendar()
	cal.SetProductId(s.productID)

	stamp := s.now().UTC()
	for _, e := range events {
		ve := cal.AddEvent(e.ID + "@" + s.uidDomain)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if e.RecurrenceRule != "" {
			if err := ValidateRule(e.RecurrenceRule); err != nil {
				s.logger.Warn("skip invalid recurrence rule", "event_id", e.ID, "rrule", e.RecurrenceRule, "error", err)
			} else {
				ve.AddRrule(e.RecurrenceRule)
			}
		}
	}

	return cal.Serialize(ical.WithNewLineWindows)
}

// ValidateRule reports whether rule is an RRULE value such as "FREQ=WEEKLY;BYDAY=MO".
func ValidateRule(rule string) error {
	_, err := rrule.StrToROption(rule)
	return err
}
