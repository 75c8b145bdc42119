// Package conversation runs chat turns end to end: stream the reply, parse
// its cards against the conversation's dedup state, enrich places and commit
// the result.
package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"teca-cli/internal/events"
	"teca-cli/internal/grammar"
	"teca-cli/internal/places"
	"teca-cli/internal/store"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

// Deps are the collaborators a conversation needs. Enricher and Store are
// optional.
type Deps struct {
	Opener   stream.Opener
	Parser   *turn.Parser
	Enricher *places.Enricher
	Store    store.Store
	Stream   stream.Options
	City     string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Hooks observe one turn in flight. Either field may be nil.
type Hooks struct {
	OnChunk stream.ChunkFunc
	OnState func(s stream.State, attempt int)
}

// Conversation is one chat thread. It owns the thread's event tracker; the
// tracker is never shared and is reset together with the thread id.
type Conversation struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	id      string
	tracker *events.Tracker
	history []turn.Message

	// gen changes on Reset; a turn started under an older generation is no
	// longer live.
	gen atomic.Uint64
}

func New(d Deps) *Conversation {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Conversation{
		deps:    d,
		logger:  logger,
		id:      newID(),
		tracker: events.NewTracker(),
	}
}

// Restore reopens a stored conversation, rebuilding its tracker from the
// committed replies.
func Restore(d Deps, id string, entries []store.Entry) *Conversation {
	c := New(d)
	c.id = id
	for _, e := range entries {
		if e.Reply == nil {
			continue
		}
		c.tracker.Replay(e.Reply.Query, e.Reply.Events)
		c.history = append(c.history, *e.Reply)
	}
	return c
}

func newID() string {
	return ulid.Make().String()
}

func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// History returns the committed replies, oldest first.
func (c *Conversation) History() []turn.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]turn.Message, len(c.history))
	copy(out, c.history)
	return out
}

// LastQuery is the query behind the most recent visible events.
func (c *Conversation) LastQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.LastQuery()
}

// CanSeeMore reports whether the latest reply left events out.
func (c *Conversation) CanSeeMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return false
	}
	return c.history[len(c.history)-1].HasMoreEvents
}

// UseGrammar switches the marker grammar for turns parsed from now on.
func (c *Conversation) UseGrammar(g grammar.Grammar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps.Parser = c.deps.Parser.WithGrammar(g)
}

// Reset starts a new thread: new id, empty tracker and history. Turns still
// in flight are abandoned.
func (c *Conversation) Reset() {
	c.gen.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = newID()
	c.tracker.Reset()
	c.history = nil
	c.logger.Debug("conversation reset", "conversation", c.id)
}

// Ask sends query as a new turn.
func (c *Conversation) Ask(ctx context.Context, query string, h Hooks) (*turn.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty question")
	}
	return c.run(ctx, turn.RawTurn{Query: query, Prompt: query}, query, h)
}

// SeeMore asks for more events for original, falling back to the last
// driving query. The follow-up prompt lists what was already shown, while
// original stays the dedup key so only unseen events come back.
func (c *Conversation) SeeMore(ctx context.Context, original string, h Hooks) (*turn.Message, error) {
	c.mu.Lock()
	query := strings.TrimSpace(original)
	if query == "" {
		query = c.tracker.LastQuery()
	}
	if query == "" {
		query = events.GenericQuery
	}
	prompt := events.SeeMorePrompt(query, c.tracker)
	c.mu.Unlock()

	return c.run(ctx, turn.RawTurn{Query: query, Prompt: prompt}, "Ver más: "+query, h)
}

func (c *Conversation) run(ctx context.Context, raw turn.RawTurn, userText string, h Hooks) (*turn.Message, error) {
	gen := c.gen.Load()
	live := func() bool { return c.gen.Load() == gen }
	id := c.ID()

	opts := c.deps.Stream
	opts.Logger = c.logger
	opts.Live = live
	if h.OnState != nil {
		base := opts.OnState
		opts.OnState = func(s stream.State, attempt int) {
			if base != nil {
				base(s, attempt)
			}
			h.OnState(s, attempt)
		}
	}
	in := stream.New(c.deps.Opener, opts)

	text, err := in.Run(ctx, stream.Request{ConversationID: id, Prompt: raw.Prompt, City: c.deps.City}, h.OnChunk)
	if err != nil {
		return nil, err
	}
	raw.Text = text

	c.mu.Lock()
	if !live() {
		c.mu.Unlock()
		return nil, stream.ErrAbandoned
	}
	msg := c.deps.Parser.Parse(raw, c.tracker)
	c.mu.Unlock()

	if c.deps.Enricher != nil && len(msg.Places) > 0 {
		msg.Places = c.deps.Enricher.Enrich(ctx, msg.Places)
	}
	for i := range msg.Places {
		msg.Places[i].IsLoadingDetails = false
	}

	msg.ID = newID()
	msg.ConversationID = id
	msg.CreatedAt = c.deps.Now().UTC()

	if c.deps.Store != nil {
		saved, err := c.deps.Store.SaveTurn(ctx, store.TurnParams{
			ConversationID: id,
			City:           c.deps.City,
			UserText:       userText,
			Reply:          msg,
		})
		if err != nil {
			c.logger.Error("saving turn", "conversation", id, "err", err)
		} else {
			msg = *saved
		}
	}

	c.mu.Lock()
	if live() {
		c.history = append(c.history, msg)
	}
	c.mu.Unlock()

	c.logger.Info("turn complete",
		"conversation", id,
		"events", len(msg.Events),
		"places", len(msg.Places),
		"has_more", msg.HasMoreEvents,
	)
	return &msg, nil
}
