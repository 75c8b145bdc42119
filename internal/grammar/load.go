package grammar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Remote is the wire shape of a marker configuration, either served by the
// backend or read from a local override file. Absent fields keep the
// defaults.
type Remote struct {
	Markers          map[Kind]Delimiters `json:"markers" yaml:"markers"`
	MaxInitialEvents int                 `json:"max_initial_events,omitempty" yaml:"max_initial_events,omitempty"`
	YearsBack        *int                `json:"years_back,omitempty" yaml:"years_back,omitempty"`
	YearsAhead       *int                `json:"years_ahead,omitempty" yaml:"years_ahead,omitempty"`
}

// Source yields a remote marker configuration.
type Source interface {
	FetchGrammar(ctx context.Context) (*Remote, error)
}

// Merge overlays the valid parts of r onto base. Entries with an empty start
// or end delimiter and unknown kinds are ignored.
func Merge(base Grammar, r *Remote) Grammar {
	if r == nil {
		return base
	}
	out := base
	for kind, d := range r.Markers {
		if !d.valid() {
			continue
		}
		switch kind {
		case KindEvent:
			out.Event = d
		case KindPlace:
			out.Place = d
		case KindMap:
			out.Map = d
		case KindDownload:
			out.Download = d
		case KindLink:
			out.Link = d
		}
	}
	if r.MaxInitialEvents > 0 {
		out.MaxInitialEvents = r.MaxInitialEvents
	}
	if r.YearsBack != nil && *r.YearsBack >= 0 {
		out.Years.Back = *r.YearsBack
	}
	if r.YearsAhead != nil && *r.YearsAhead >= 0 {
		out.Years.Ahead = *r.YearsAhead
	}
	return out
}

// Load resolves the session grammar. Sources are applied in order on top of
// Default; a failing source is logged and skipped, so Load always returns a
// usable grammar.
func Load(ctx context.Context, logger *slog.Logger, sources ...Source) Grammar {
	return Resolve(ctx, logger, Default(), sources...)
}

// Resolve is Load starting from base instead of Default. An invalid base is
// replaced by Default.
func Resolve(ctx context.Context, logger *slog.Logger, base Grammar, sources ...Source) Grammar {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g := base
	if err := g.Validate(); err != nil {
		logger.Debug("base marker grammar rejected, using defaults", "err", err)
		g = Default()
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		r, err := src.FetchGrammar(ctx)
		if err != nil {
			logger.Debug("marker grammar source unavailable, keeping defaults", "err", err)
			continue
		}
		merged := Merge(g, r)
		if err := merged.Validate(); err != nil {
			logger.Debug("marker grammar source rejected", "err", err)
			continue
		}
		g = merged
	}
	return g
}

// FileSource reads a YAML override of the marker grammar.
type FileSource struct {
	Path string
}

func (f FileSource) FetchGrammar(ctx context.Context) (*Remote, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("grammar file: no path configured")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading grammar file: %w", err)
	}
	var r Remote
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing grammar file: %w", err)
	}
	return &r, nil
}
