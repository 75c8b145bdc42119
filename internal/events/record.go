package events

import (
	"regexp"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// maxSpanDays caps how many per-day identities one record can expand to.
const maxSpanDays = 366

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Record is one calendar event card.
type Record struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	EndDate     string `json:"endDate,omitempty"`
	Time        string `json:"time,omitempty"`
	Location    string `json:"location,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	SourceTitle string `json:"sourceTitle,omitempty"`
}

// IsRange reports whether the record spans more than one day.
func (r Record) IsRange() bool {
	return r.EndDate != "" && r.EndDate != r.Date
}

// LastDay returns EndDate for a range and Date otherwise.
func (r Record) LastDay() string {
	if r.IsRange() {
		return r.EndDate
	}
	return r.Date
}

// Year returns the year of Date, or 0 when Date is not a valid day.
func (r Record) Year() int {
	t, ok := parseDay(r.Date)
	if !ok {
		return 0
	}
	return t.Year()
}

func parseDay(s string) (time.Time, bool) {
	if !dateRe.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func nextDay(s string) string {
	t, ok := parseDay(s)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(dayLayout)
}

// Validate trims the record and checks it against the card rules: a
// non-empty title and a real YYYY-MM-DD date. An unusable endDate (malformed,
// before date, or equal to it) is dropped rather than rejecting the record.
func Validate(r Record) (Record, bool) {
	r.Title = strings.TrimSpace(r.Title)
	r.Date = strings.TrimSpace(r.Date)
	r.EndDate = strings.TrimSpace(r.EndDate)
	r.Time = strings.TrimSpace(r.Time)
	r.Location = strings.TrimSpace(r.Location)
	r.SourceURL = strings.TrimSpace(r.SourceURL)
	r.SourceTitle = strings.TrimSpace(r.SourceTitle)

	if r.Title == "" {
		return r, false
	}
	start, ok := parseDay(r.Date)
	if !ok {
		return r, false
	}
	if r.EndDate != "" {
		end, ok := parseDay(r.EndDate)
		if !ok || !end.After(start) {
			r.EndDate = ""
		}
	}
	return r, true
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Identities expands a record into one dedup key per calendar day it covers:
// the lower-cased title plus the day.
func Identities(r Record) []string {
	key := titleKey(r.Title)
	start, ok := parseDay(r.Date)
	if !ok {
		return nil
	}
	end := start
	if r.IsRange() {
		if e, ok := parseDay(r.EndDate); ok && e.After(start) {
			end = e
		}
	}
	var ids []string
	for d, n := start, 0; !d.After(end) && n < maxSpanDays; d, n = d.AddDate(0, 0, 1), n+1 {
		ids = append(ids, key+"|"+d.Format(dayLayout))
	}
	return ids
}
