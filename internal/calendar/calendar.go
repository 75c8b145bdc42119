// Package calendar exports event cards as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"teca-cli/internal/events"
)

const (
	productID = "-//teca//teca-cli//ES"
	dayLayout = "2006-01-02"
	uidDomain = "teca"
)

// uidSpace namespaces the name-based event UIDs.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://teca/events"))

// Export renders recs as a VCALENDAR of all-day events. Records whose dates
// do not parse are skipped; duplicate records collapse to one VEVENT.
func Export(name string, recs []events.Record) (string, error) {
	return export(name, recs, time.Now().UTC())
}

func export(name string, recs []events.Record, stamp time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	seen := make(map[string]bool)
	added := 0
	for _, r := range recs {
		start, err := time.Parse(dayLayout, r.Date)
		if err != nil {
			continue
		}
		last, err := time.Parse(dayLayout, r.LastDay())
		if err != nil || last.Before(start) {
			last = start
		}

		uid := UID(r)
		if seen[uid] {
			continue
		}
		seen[uid] = true

		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(last.AddDate(0, 0, 1))
		ev.SetSummary(r.Title)
		if r.Location != "" {
			ev.SetLocation(r.Location)
		}
		if r.SourceURL != "" {
			ev.SetURL(r.SourceURL)
		}
		if d := description(r); d != "" {
			ev.SetDescription(d)
		}
		added++
	}
	if added == 0 {
		return "", fmt.Errorf("no exportable events")
	}
	return cal.Serialize(), nil
}

// UID is stable for the same title and dates, so re-exporting a
// conversation updates calendar entries instead of duplicating them.
func UID(r events.Record) string {
	key := strings.ToLower(strings.TrimSpace(r.Title)) + "|" + r.Date + "|" + r.LastDay()
	return uuid.NewSHA1(uidSpace, []byte(key)).String() + "@" + uidDomain
}

func description(r events.Record) string {
	var lines []string
	if r.Time != "" {
		lines = append(lines, "Hora: "+r.Time)
	}
	if r.SourceTitle != "" {
		lines = append(lines, "Fuente: "+r.SourceTitle)
	}
	if r.SourceURL != "" && r.SourceTitle == "" {
		lines = append(lines, "Fuente: "+r.SourceURL)
	}
	return strings.Join(lines, "\n")
}
