package turn

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"teca-cli/internal/events"
	"teca-cli/internal/grammar"
	"teca-cli/internal/markers"
	"teca-cli/internal/places"
)

// RawTurn is the fully accumulated text of one assistant response and the
// request that produced it.
type RawTurn struct {
	// Query is the user's request; it is the dedup key for events.
	Query string
	// Prompt is what was actually sent, which differs from Query for
	// "see more" follow-ups.
	Prompt string
	Text   string
}

// Download asks the client to offer an uploaded document.
type Download struct {
	FileName string `json:"fileName"`
}

// ActionLink is a single call-to-action button.
type ActionLink struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Message is the fully resolved assistant turn: the only shape the rest of
// the application depends on.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Query          string          `json:"query"`
	Text           string          `json:"text"`
	Events         []events.Record `json:"events,omitempty"`
	HasMoreEvents  bool            `json:"hasMoreEvents,omitempty"`
	Places         []places.Record `json:"places,omitempty"`
	MapQuery       string          `json:"mapQuery,omitempty"`
	Download       *Download       `json:"download,omitempty"`
	Link           *ActionLink     `json:"link,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// CardKind orders the revealable cards.
type CardKind int

const (
	CardEvent CardKind = iota
	CardPlace
	CardLink
)

// Card points at one revealable item of a Message.
type Card struct {
	Kind  CardKind
	Index int
}

// Cards lists the message's cards in reveal order: events, places, then the
// action link.
func (m *Message) Cards() []Card {
	var out []Card
	for i := range m.Events {
		out = append(out, Card{Kind: CardEvent, Index: i})
	}
	for i := range m.Places {
		out = append(out, Card{Kind: CardPlace, Index: i})
	}
	if m.Link != nil {
		out = append(out, Card{Kind: CardLink})
	}
	return out
}

// Parser turns a RawTurn into a Message.
type Parser struct {
	Grammar    grammar.Grammar
	Normalizer *events.Normalizer
	Validator  places.Validator
	SortMode   events.SortMode
	Logger     *slog.Logger
}

func NewParser(g grammar.Grammar, v places.Validator, mode events.SortMode, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{
		Grammar:    g,
		Normalizer: events.NewNormalizer(g, logger),
		Validator:  v,
		SortMode:   mode,
		Logger:     logger,
	}
}

// WithGrammar returns a copy of p driven by g. The copy keeps p's clock,
// validator and sort mode.
func (p *Parser) WithGrammar(g grammar.Grammar) *Parser {
	np := *p
	np.Grammar = g
	n := *p.Normalizer
	n.MaxInitial = g.MaxInitialEvents
	n.Years = g.Years
	np.Normalizer = &n
	return &np
}

// Parse extracts every card from raw and updates tr with the events shown.
// It never fails: unusable payloads are logged and dropped.
func (p *Parser) Parse(raw RawTurn, tr *events.Tracker) Message {
	tok := markers.Tokenize(raw.Text, p.Grammar)

	res := p.Normalizer.Normalize(tok.Events, raw.Query, tr, p.SortMode)
	msg := Message{
		Query:         raw.Query,
		Text:          cleanText(tok.Text),
		Events:        res.Events,
		HasMoreEvents: res.HasMore,
		Places:        p.parsePlaces(tok.Places),
		MapQuery:      firstNonEmpty(tok.Maps),
		Link:          p.parseLink(tok.Links),
	}
	if name := firstNonEmpty(tok.Downloads); name != "" {
		msg.Download = &Download{FileName: name}
	}

	p.Logger.Debug("turn parsed",
		"payloads", tok.Count(),
		"events", len(msg.Events),
		"events_discarded", res.Discarded,
		"places", len(msg.Places),
		"has_more", msg.HasMoreEvents,
	)
	return msg
}

func (p *Parser) parsePlaces(payloads []string) []places.Record {
	var out []places.Record
	seen := make(map[string]bool)
	for _, raw := range payloads {
		r, ok := places.Parse(raw)
		if !ok {
			p.Logger.Debug("place payload discarded: unparseable", "payload", raw)
			continue
		}
		if !p.Validator.Accept(r) {
			p.Logger.Debug("place discarded: failed locality check", "name", r.Name, "query", r.SearchQuery)
			continue
		}
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out
}

func (p *Parser) parseLink(payloads []string) *ActionLink {
	for _, raw := range payloads {
		var l ActionLink
		if err := json.Unmarshal([]byte(markers.StripDecorations(raw)), &l); err != nil {
			p.Logger.Debug("link payload discarded: unparseable", "payload", raw)
			continue
		}
		l.URL = strings.TrimSpace(l.URL)
		l.Text = strings.TrimSpace(l.Text)
		u, err := url.Parse(l.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || l.Text == "" {
			p.Logger.Debug("link discarded: invalid", "url", l.URL)
			continue
		}
		return &l
	}
	return nil
}

func firstNonEmpty(payloads []string) string {
	for _, s := range payloads {
		if s = strings.TrimSpace(markers.StripDecorations(s)); s != "" {
			return s
		}
	}
	return ""
}

var blankRunRe = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)

// cleanText collapses the blank-line runs left behind by removed blocks.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
