package events

import (
	"fmt"
	"strings"
)

// GenericQuery stands in for the original request when neither the caller
// nor the tracker knows it.
const GenericQuery = "eventos y actividades en la ciudad"

// SeeMorePrompt builds the follow-up request for more events. The original
// query falls back to the tracker's last driving query and then to
// GenericQuery. Every event already shown is listed so the backend can
// leave it out.
func SeeMorePrompt(original string, tr *Tracker) string {
	query := strings.TrimSpace(original)
	if query == "" && tr != nil {
		query = tr.LastQuery()
	}
	if query == "" {
		query = GenericQuery
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Muéstrame más resultados para: \"%s\".", query)

	var shown []Record
	if tr != nil {
		shown = tr.Shown()
	}
	if len(shown) == 0 {
		return b.String()
	}

	b.WriteString("\nYa he visto estos eventos, NO los repitas:")
	for _, r := range shown {
		fmt.Fprintf(&b, "\n- %s (%s)", r.Title, representativeDate(r))
	}
	b.WriteString("\nIncluye solo eventos distintos a los de esta lista.")
	return b.String()
}

func representativeDate(r Record) string {
	if r.IsRange() {
		return r.Date + " al " + r.EndDate
	}
	return r.Date
}
