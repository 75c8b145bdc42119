package events

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"teca-cli/internal/grammar"
	"teca-cli/internal/markers"
)

// Result is what one assistant turn contributes to the event list.
type Result struct {
	Events    []Record
	HasMore   bool
	Discarded int
}

// Normalizer turns captured event payloads into the ordered, deduplicated
// list shown for a turn.
type Normalizer struct {
	MaxInitial int
	Years      grammar.YearWindow
	Now        func() time.Time
	Logger     *slog.Logger
}

func NewNormalizer(g grammar.Grammar, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Normalizer{
		MaxInitial: g.MaxInitialEvents,
		Years:      g.Years,
		Now:        time.Now,
		Logger:     logger,
	}
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// Collect decodes, validates and year-filters payloads. Anything rejected is
// logged and counted, never returned as an error.
func (n *Normalizer) Collect(payloads []string) ([]Record, int) {
	current := n.now().Year()
	var out []Record
	discarded := 0
	for _, p := range payloads {
		clean := markers.StripDecorations(p)
		recs, strategy := Decode(clean)
		if strategy == StrategyNone {
			discarded++
			n.Logger.Debug("event payload discarded: unparseable", "payload", truncate(clean, 120))
			continue
		}
		if strategy != StrategyStrict {
			n.Logger.Debug("event payload repaired", "strategy", string(strategy))
		}
		for _, r := range recs {
			v, ok := Validate(r)
			if !ok {
				discarded++
				n.Logger.Debug("event discarded: invalid", "title", r.Title, "date", r.Date)
				continue
			}
			if !n.Years.Contains(v.Year(), current) {
				discarded++
				n.Logger.Debug("event discarded: outside year window", "title", v.Title, "date", v.Date)
				continue
			}
			out = append(out, v)
		}
	}
	return out, discarded
}

// Normalize produces the events to show for one turn and updates the
// conversation's tracker.
//
// A query different from the tracker's last driving query starts over: the
// tracker is cleared and every grouped event is eligible. The same query
// again is a continuation: only events with at least one unseen day are
// eligible. Either way the list is capped at MaxInitial and HasMore reports
// that eligible events were left out. A turn without any valid event leaves
// the tracker untouched.
func (n *Normalizer) Normalize(payloads []string, query string, tr *Tracker, mode SortMode) Result {
	recs, discarded := n.Collect(payloads)
	res := Result{Discarded: discarded}
	grouped := Group(recs)
	if len(grouped) == 0 {
		return res
	}
	Sort(grouped, mode)

	limit := n.MaxInitial
	if limit <= 0 {
		limit = len(grouped)
	}

	q := strings.TrimSpace(query)
	continuation := q == tr.lastQuery && tr.lastQuery != ""
	if !continuation {
		tr.clear()
	}

	for _, r := range grouped {
		ids := Identities(r)
		if continuation && !tr.hasUnseen(ids) {
			continue
		}
		if len(res.Events) == limit {
			res.HasMore = true
			break
		}
		res.Events = append(res.Events, r)
		tr.add(r, ids)
	}

	if len(res.Events) > 0 {
		tr.lastQuery = q
	}
	return res
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
