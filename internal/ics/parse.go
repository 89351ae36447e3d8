// Package ics reads and writes the iCalendar interchange format.
//
// Parse is a best-effort line scanner, not a validating parser. Each
// BEGIN:VEVENT/END:VEVENT block yields one ParsedEvent. Required per block:
// SUMMARY, DTSTART and DTEND. Optional: LOCATION and DESCRIPTION. A block
// missing a required field, or whose timestamps cannot be decoded, is dropped
// without error. Only the first occurrence of each property is used.
package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsedEvent is one VEVENT block as read from a document.
type ParsedEvent struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
}

// Parse extracts every well-formed VEVENT block from doc.
func Parse(doc string) []ParsedEvent {
	var events []ParsedEvent
	for _, block := range splitBlocks(unfold(doc)) {
		ev, ok := parseBlock(block)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// unfold normalizes line endings and joins continuation lines, which begin
// with a single space or tab.
func unfold(doc string) []string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.ReplaceAll(doc, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(doc, "\n") {
		if len(lines) > 0 && line != "" && (line[0] == ' ' || line[0] == '\t') {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitBlocks returns the property lines of each VEVENT. Lines belonging to
// nested components such as VALARM are left out.
func splitBlocks(lines []string) [][]string {
	var blocks [][]string
	var cur []string
	inEvent := false
	depth := 0

	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case !inEvent:
			if upper == "BEGIN:VEVENT" {
				inEvent, depth, cur = true, 0, nil
			}
		case upper == "END:VEVENT" && depth == 0:
			blocks = append(blocks, cur)
			inEvent = false
		case strings.HasPrefix(upper, "BEGIN:"):
			depth++
		case strings.HasPrefix(upper, "END:"):
			if depth > 0 {
				depth--
			}
		case depth == 0:
			cur = append(cur, line)
		}
	}
	return blocks
}

type fields map[string]string

// extract records the first value of each property name in the block.
// Parameters between the name and the colon are ignored.
func extract(block []string) fields {
	f := make(fields)
	for _, line := range block {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := line[:colon]
		if semi := strings.IndexByte(name, ';'); semi >= 0 {
			name = name[:semi]
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if _, seen := f[name]; seen {
			continue
		}
		f[name] = line[colon+1:]
	}
	return f
}

func parseBlock(block []string) (ParsedEvent, bool) {
	f := extract(block)

	summary, ok := f["SUMMARY"]
	if !ok {
		return ParsedEvent{}, false
	}
	rawStart, okStart := f["DTSTART"]
	rawEnd, okEnd := f["DTEND"]
	if !okStart || !okEnd {
		return ParsedEvent{}, false
	}
	start, err := ParseTimestamp(rawStart)
	if err != nil {
		return ParsedEvent{}, false
	}
	end, err := ParseTimestamp(rawEnd)
	if err != nil {
		return ParsedEvent{}, false
	}

	return ParsedEvent{
		Summary:     unescapeText(summary),
		Start:       start,
		End:         end,
		Location:    unescapeText(f["LOCATION"]),
		Description: unescapeText(f["DESCRIPTION"]),
	}, true
}

const utcLayout = "20060102T150405Z"

// ParseTimestamp decodes a DTSTART/DTEND value. A trailing Z marks a full UTC
// instant. Eight characters are a date at midnight UTC. Anything else is read
// as YYYYMMDDThhmm in UTC; seconds are not read.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(utcLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse utc timestamp %q: %w", v, err)
		}
		return t, nil
	case len(v) == 8:
		return dateTime(v, "00", "00")
	case len(v) >= 13:
		return dateTime(v[:8], v[9:11], v[11:13])
	default:
		return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized form", v)
	}
}

func dateTime(date, hour, minute string) (time.Time, error) {
	y, err1 := strconv.Atoi(date[0:4])
	mo, err2 := strconv.Atoi(date[4:6])
	d, err3 := strconv.Atoi(date[6:8])
	h, err4 := strconv.Atoi(hour)
	mi, err5 := strconv.Atoi(minute)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %s: %w", date, err)
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 || h > 23 || mi > 59 || h < 0 || mi < 0 {
		return time.Time{}, fmt.Errorf("parse timestamp %s: field out of range", date)
	}
	return time.Date(y, time.Month(mo), d, h, mi, 0, 0, time.UTC), nil
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
