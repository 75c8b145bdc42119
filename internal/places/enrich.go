package places

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/time/rate"
)

// Query is what the geodata service needs to resolve a place.
type Query struct {
	PlaceID     string `json:"place_id,omitempty"`
	SearchQuery string `json:"query,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Details is the geodata service's answer.
type Details struct {
	PlaceID   string  `json:"place_id,omitempty"`
	Address   string  `json:"address,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Website   string  `json:"website,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lng,omitempty"`
	PhotoURL  string  `json:"photo_url,omitempty"`
	MapsURL   string  `json:"maps_url,omitempty"`
}

// Lookup resolves place metadata.
type Lookup interface {
	LookupPlace(ctx context.Context, q Query) (*Details, error)
}

// Enricher fills in place details, one lookup at a time under a rate limit.
type Enricher struct {
	lookup  Lookup
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEnricher returns an enricher allowing rps lookups per second with the
// given burst. A non-positive rps disables the limit.
func NewEnricher(lookup Lookup, rps float64, burst int, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Enricher{
		lookup:  lookup,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Enrich returns a copy of recs with details filled in. Records that arrived
// enriched are left alone; a failed lookup keeps the record as parsed. No
// record is left marked as loading.
func (e *Enricher) Enrich(ctx context.Context, recs []Record) []Record {
	out := make([]Record, len(recs))
	copy(out, recs)
	for i := range out {
		r := &out[i]
		if !r.IsLoadingDetails {
			continue
		}
		r.IsLoadingDetails = false
		if e.lookup == nil {
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			e.logger.Debug("place lookup skipped", "name", r.Name, "err", err)
			continue
		}
		d, err := e.lookup.LookupPlace(ctx, Query{PlaceID: r.PlaceID, SearchQuery: r.SearchQuery, Name: r.Name})
		if err != nil {
			e.logger.Debug("place lookup failed", "name", r.Name, "err", err)
			continue
		}
		apply(r, d)
	}
	return out
}

func apply(r *Record, d *Details) {
	if d == nil {
		return
	}
	if r.PlaceID == "" {
		r.PlaceID = d.PlaceID
	}
	r.Address = d.Address
	r.Phone = d.Phone
	r.Website = d.Website
	r.Rating = d.Rating
	r.Latitude = d.Latitude
	r.Longitude = d.Longitude
	r.PhotoURL = d.PhotoURL
	r.MapsURL = d.MapsURL
}
