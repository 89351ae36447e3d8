package ics

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/homecal/internal/model"
)

func newTestSerializer() *Serializer {
	s := NewSerializer("-//homecal//Household Calendar//EN", "homecal.test", slog.Default())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestSerializeHeaderAndFields(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	events := []model.Event{
		{
			ID:             "ev1",
			Title:          "Swim practice",
			Start:          time.Date(2024, 3, 15, 15, 30, 0, 0, berlin),
			End:            time.Date(2024, 3, 15, 16, 30, 0, 0, berlin),
			Location:       "Pool",
			RecurrenceRule: "FREQ=WEEKLY;BYDAY=FR",
		},
		{
			ID:    "ev2",
			Title: "Bare",
			Start: time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC),
		},
	}

	doc := newTestSerializer().Serialize(events)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//homecal//Household Calendar//EN",
		"UID:ev1@homecal.test",
		"UID:ev2@homecal.test",
		"DTSTAMP:20240301T080000Z",
		"DTSTART:20240315T143000Z",
		"DTEND:20240315T153000Z",
		"SUMMARY:Swim practice",
		"LOCATION:Pool",
		"RRULE:FREQ=WEEKLY;BYDAY=FR",
		"END:VCALENDAR",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	if got := strings.Count(doc, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("VEVENT count = %d, want 2", got)
	}
	if got := strings.Count(doc, "LOCATION:"); got != 1 {
		t.Errorf("LOCATION count = %d, want 1 (only for events that have one)", got)
	}
	if strings.Contains(doc, "DESCRIPTION:") {
		t.Error("DESCRIPTION must be omitted when no event has notes")
	}
}

func TestSerializeDropsInvalidRule(t *testing.T) {
	doc := newTestSerializer().Serialize([]model.Event{{
		ID:             "ev1",
		Title:          "Odd",
		Start:          time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC),
		RecurrenceRule: "FREQ=SOMETIMES",
	}})
	if strings.Contains(doc, "RRULE") {
		t.Errorf("expected invalid rule to be dropped:\n%s", doc)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	events := []model.Event{
		{
			ID:             "a",
			Title:          "Parents evening, school",
			Start:          time.Date(2024, 5, 2, 17, 0, 0, 0, time.UTC),
			End:            time.Date(2024, 5, 2, 18, 30, 0, 0, time.UTC),
			Location:       "Room 12; second floor",
			Notes:          "Ask about the field trip and the reading list for the summer holidays, then pick up the forms",
			RecurrenceRule: "FREQ=YEARLY",
		},
		{
			ID:    "b",
			Title: "Bin day",
			Start: time.Date(2024, 5, 3, 6, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 5, 3, 7, 0, 0, 0, time.UTC),
		},
		{
			ID:       "c",
			Title:    strings.Repeat("longtext ", 30),
			Start:    time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC),
			Location: "Garden ",
			Notes:    "a trailing space ",
		},
	}

	parsed := Parse(newTestSerializer().Serialize(events))
	if len(parsed) != len(events) {
		t.Fatalf("parsed %d events, want %d", len(parsed), len(events))
	}
	for i, e := range events {
		p := parsed[i]
		if p.Summary != e.Title {
			t.Errorf("[%d] summary = %q, want %q", i, p.Summary, e.Title)
		}
		if !p.Start.Equal(e.Start) {
			t.Errorf("[%d] start = %v, want %v", i, p.Start, e.Start)
		}
		if !p.End.Equal(e.End) {
			t.Errorf("[%d] end = %v, want %v", i, p.End, e.End)
		}
		if p.Location != e.Location {
			t.Errorf("[%d] location = %q, want %q", i, p.Location, e.Location)
		}
		if p.Description != e.Notes {
			t.Errorf("[%d] description = %q, want %q", i, p.Description, e.Notes)
		}
	}
}

func TestValidateRule(t *testing.T) {
	if err := ValidateRule("FREQ=MONTHLY;BYMONTHDAY=1"); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
	if err := ValidateRule("BYDAY=MO"); err == nil {
		t.Error("rule without FREQ should be rejected")
	}
}

func TestSerializeUsesCRLF(t *testing.T) {
	doc := newTestSerializer().Serialize([]model.Event{{
		ID:    "ev1",
		Title: "Bin day",
		Start: time.Date(2024, 5, 3, 6, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 3, 7, 0, 0, 0, time.UTC),
	}})

	if !strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n") {
		t.Errorf("document does not start with a CRLF line: %q", doc[:min(len(doc), 20)])
	}
	if bare := strings.Count(doc, "\n") - strings.Count(doc, "\r\n"); bare != 0 {
		t.Errorf("found %d bare LF line endings", bare)
	}
}
