package events

import (
	"fmt"
	"sort"
	"strings"
)

// SortMode selects the ordering of emitted events.
type SortMode int

const (
	// Chronological orders by date, then title.
	Chronological SortMode = iota
	// Alphabetical orders by title, then date.
	Alphabetical
)

func (m SortMode) String() string {
	switch m {
	case Alphabetical:
		return "alphabetical"
	default:
		return "chronological"
	}
}

// ParseSortMode accepts the config spelling of a sort mode.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chronological", "date":
		return Chronological, nil
	case "alphabetical", "title":
		return Alphabetical, nil
	default:
		return Chronological, fmt.Errorf("unknown sort mode: %s", s)
	}
}

// tiebreak orders records that share both primary keys, so the result does
// not depend on input order.
func tiebreak(a, b Record) int {
	for _, p := range [][2]string{
		{a.Title, b.Title},
		{a.EndDate, b.EndDate},
		{a.Time, b.Time},
		{a.Location, b.Location},
		{a.SourceURL, b.SourceURL},
	} {
		if c := strings.Compare(p[0], p[1]); c != 0 {
			return c
		}
	}
	return 0
}

func compare(a, b Record, mode SortMode) int {
	ta, tb := titleKey(a.Title), titleKey(b.Title)
	var c int
	if mode == Alphabetical {
		if c = strings.Compare(ta, tb); c == 0 {
			c = strings.Compare(a.Date, b.Date)
		}
	} else {
		if c = strings.Compare(a.Date, b.Date); c == 0 {
			c = strings.Compare(ta, tb)
		}
	}
	if c != 0 {
		return c
	}
	return tiebreak(a, b)
}

// Sort orders records in place. The sort is stable.
func Sort(records []Record, mode SortMode) {
	sort.SliceStable(records, func(i, j int) bool {
		return compare(records[i], records[j], mode) < 0
	})
}

// Group collapses exact duplicates and merges same-titled single-day records
// on strictly consecutive days into one ranged record. A record that already
// carries its own endDate is never merged. The result is in chronological
// order.
func Group(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	sorted := make([]Record, len(records))
	copy(sorted, records)
	Sort(sorted, Chronological)

	seen := make(map[string]bool, len(sorted))
	var order []string
	byTitle := make(map[string][]Record)
	for _, r := range sorted {
		dupKey := titleKey(r.Title) + "|" + r.Date + "|" + r.EndDate
		if seen[dupKey] {
			continue
		}
		seen[dupKey] = true
		k := titleKey(r.Title)
		if _, ok := byTitle[k]; !ok {
			order = append(order, k)
		}
		byTitle[k] = append(byTitle[k], r)
	}

	var out []Record
	for _, k := range order {
		out = append(out, mergeRuns(byTitle[k])...)
	}
	Sort(out, Chronological)
	return out
}

// mergeRuns expects records of one title in chronological order.
func mergeRuns(recs []Record) []Record {
	var out []Record
	cur := recs[0]
	locked := cur.IsRange()
	for _, next := range recs[1:] {
		if !locked && !next.IsRange() && next.Date == nextDay(cur.LastDay()) {
			cur.EndDate = next.Date
			continue
		}
		out = append(out, cur)
		cur = next
		locked = cur.IsRange()
	}
	return append(out, cur)
}
