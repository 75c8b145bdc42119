package places

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"teca-cli/internal/markers"
)

// Record is one point-of-interest card. Enrichment fields come from the
// geodata lookup and are normally empty at parse time.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlaceID     string `json:"placeId,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`

	Address   string  `json:"address,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Website   string  `json:"website,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lng,omitempty"`
	PhotoURL  string  `json:"photoUrl,omitempty"`
	MapsURL   string  `json:"mapsUrl,omitempty"`

	IsLoadingDetails bool `json:"isLoadingDetails"`
}

// Enriched reports whether any enrichment field is already filled in.
func (r Record) Enriched() bool {
	return r.Address != "" || r.Phone != "" || r.Website != "" || r.PhotoURL != "" ||
		r.MapsURL != "" || r.Rating != 0 || r.Latitude != 0 || r.Longitude != 0
}

// Key identifies a place within one turn.
func (r Record) Key() string {
	if r.PlaceID != "" {
		return "id:" + r.PlaceID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(r.Name))
}

// Parse decodes one place payload. It assigns a fresh ID and marks the
// record as waiting for details unless enrichment came with the payload.
func Parse(payload string) (Record, bool) {
	var r Record
	if err := json.Unmarshal([]byte(markers.StripDecorations(payload)), &r); err != nil {
		return Record{}, false
	}
	r.Name = strings.TrimSpace(r.Name)
	r.PlaceID = strings.TrimSpace(r.PlaceID)
	r.SearchQuery = strings.TrimSpace(r.SearchQuery)
	r.ID = uuid.NewString()
	r.IsLoadingDetails = !r.Enriched()
	return r, true
}

// Validator decides whether a place belongs to the session's city.
type Validator struct {
	// Gazetteer lists known localities; a search query must mention one.
	Gazetteer []string
	// Indicators are short locality markers accepted in the place name when
	// the search query lacks locality context.
	Indicators []string
}

// Accept keeps records with a name and a placeId or searchQuery. A record
// identified only by its search query must name a known locality in the
// query, or failing that carry a locality indicator in its name.
func (v Validator) Accept(r Record) bool {
	if r.Name == "" {
		return false
	}
	if r.PlaceID != "" {
		return true
	}
	if r.SearchQuery == "" {
		return false
	}
	if containsAny(r.SearchQuery, v.Gazetteer) {
		return true
	}
	return containsAny(r.Name, v.Indicators)
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
