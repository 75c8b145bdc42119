package grammar

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate for a grammar that cannot drive extraction.
var ErrInvalid = errors.New("invalid marker grammar")

// Kind names a block type embedded in assistant text.
type Kind string

const (
	KindEvent    Kind = "event"
	KindPlace    Kind = "place"
	KindMap      Kind = "map"
	KindDownload Kind = "download"
	KindLink     Kind = "link"
)

// Delimiters is a literal start/end pair around one payload.
type Delimiters struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

func (d Delimiters) valid() bool {
	return d.Start != "" && d.End != ""
}

// YearWindow bounds which event years are kept, relative to the current year.
// Back=1, Ahead=0 keeps the current and the previous year.
type YearWindow struct {
	Back  int `json:"back" yaml:"back"`
	Ahead int `json:"ahead" yaml:"ahead"`
}

// Contains reports whether year falls inside the window around current.
func (w YearWindow) Contains(year, current int) bool {
	return year >= current-w.Back && year <= current+w.Ahead
}

// Grammar is the resolved marker set for one session. It is a value: copy it,
// never mutate a shared one.
type Grammar struct {
	Event    Delimiters
	Place    Delimiters
	Map      Delimiters
	Download Delimiters
	Link     Delimiters

	MaxInitialEvents int
	Years            YearWindow
}

// Block pairs a kind with its delimiters.
type Block struct {
	Kind       Kind
	Delimiters Delimiters
}

// Default returns the built-in grammar used whenever no remote value is
// available.
func Default() Grammar {
	return Grammar{
		Event:            Delimiters{Start: "[EVENT_CARD_START]", End: "[EVENT_CARD_END]"},
		Place:            Delimiters{Start: "[PLACE_CARD_START]", End: "[PLACE_CARD_END]"},
		Map:              Delimiters{Start: "[SHOW_MAP:", End: "]"},
		Download:         Delimiters{Start: "[PROVIDE_DOWNLOAD_LINK_FOR_UPLOADED_PDF:", End: "]"},
		Link:             Delimiters{Start: "[TECA_LINK_BUTTON_START]", End: "[TECA_LINK_BUTTON_END]"},
		MaxInitialEvents: 5,
		Years:            YearWindow{Back: 1, Ahead: 0},
	}
}

// Blocks lists every block in extraction order: events, places, then the
// map, download and link markers.
func (g Grammar) Blocks() []Block {
	return []Block{
		{KindEvent, g.Event},
		{KindPlace, g.Place},
		{KindMap, g.Map},
		{KindDownload, g.Download},
		{KindLink, g.Link},
	}
}

// Delimiters returns the pair configured for kind.
func (g Grammar) Delimiters(kind Kind) (Delimiters, bool) {
	for _, b := range g.Blocks() {
		if b.Kind == kind {
			return b.Delimiters, true
		}
	}
	return Delimiters{}, false
}

func (g Grammar) Validate() error {
	for _, b := range g.Blocks() {
		if !b.Delimiters.valid() {
			return fmt.Errorf("%w: %s block has an empty delimiter", ErrInvalid, b.Kind)
		}
	}
	if g.MaxInitialEvents <= 0 {
		return fmt.Errorf("%w: max initial events must be positive, got %d", ErrInvalid, g.MaxInitialEvents)
	}
	if g.Years.Back < 0 || g.Years.Ahead < 0 {
		return fmt.Errorf("%w: negative year window", ErrInvalid)
	}
	return nil
}
