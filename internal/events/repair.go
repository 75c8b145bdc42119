package events

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Strategy names the decoder that produced a record.
type Strategy string

const (
	StrategyNone      Strategy = ""
	StrategyStrict    Strategy = "strict"
	StrategySanitized Strategy = "sanitized"
	StrategyFields    Strategy = "fields"
)

type decoder struct {
	name   Strategy
	decode func(string) ([]Record, bool)
}

// decoders run in priority order; the first one that yields records wins.
var decoders = []decoder{
	{StrategyStrict, decodeStrict},
	{StrategySanitized, decodeSanitized},
	{StrategyFields, extractFields},
}

// Decode turns one captured event payload into records. It never fails
// loudly: an unrecoverable payload yields no records and StrategyNone.
func Decode(payload string) ([]Record, Strategy) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, StrategyNone
	}
	for _, d := range decoders {
		if recs, ok := d.decode(payload); ok {
			return recs, d.name
		}
	}
	return nil, StrategyNone
}

// decodeStrict accepts a single JSON object or an array of objects.
func decodeStrict(s string) ([]Record, bool) {
	if strings.HasPrefix(s, "[") {
		var recs []Record
		if err := json.Unmarshal([]byte(s), &recs); err != nil || len(recs) == 0 {
			return nil, false
		}
		return recs, true
	}
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, false
	}
	return []Record{r}, true
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// sanitize replaces control characters with spaces and collapses whitespace
// runs, which fixes raw newlines and tabs inside JSON strings.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}

func decodeSanitized(s string) ([]Record, bool) {
	clean := sanitize(s)
	if clean == s {
		return nil, false
	}
	return decodeStrict(clean)
}

func fieldRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^A-Za-z0-9_])"?` + name + `"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
}

var (
	titleFieldRe       = fieldRe("title")
	dateFieldRe        = fieldRe("date")
	endDateFieldRe     = fieldRe("endDate")
	timeFieldRe        = fieldRe("time")
	locationFieldRe    = fieldRe("location")
	sourceURLFieldRe   = fieldRe("sourceUrl")
	sourceTitleFieldRe = fieldRe("sourceTitle")
)

func findField(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if v, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return v
	}
	return m[1]
}

// extractFields pulls each known field out individually. It is the last
// resort for payloads that are not JSON at all, e.g. a missing comma.
func extractFields(s string) ([]Record, bool) {
	s = sanitize(s)
	r := Record{
		Title:       findField(titleFieldRe, s),
		Date:        findField(dateFieldRe, s),
		EndDate:     findField(endDateFieldRe, s),
		Time:        findField(timeFieldRe, s),
		Location:    findField(locationFieldRe, s),
		SourceURL:   findField(sourceURLFieldRe, s),
		SourceTitle: findField(sourceTitleFieldRe, s),
	}
	if r.Title == "" && r.Date == "" {
		return nil, false
	}
	return []Record{r}, true
}
