package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"teca-cli/internal/api"
	"teca-cli/internal/config"
	"teca-cli/internal/conversation"
	"teca-cli/internal/events"
	"teca-cli/internal/grammar"
	"teca-cli/internal/logging"
	"teca-cli/internal/places"
	"teca-cli/internal/store"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

const grammarTimeout = 10 * time.Second

// session is everything one command invocation needs: config, logger,
// backend client and the message store.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	logs   io.Closer
	client api.AssistantAPI
	store  store.Store
}

// open loads the profile's config and builds the logger. Interactive
// sessions log to the configured file since the TUI owns the terminal. The
// store opens lazily.
func open(profile string, interactive bool) (*session, error) {
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if interactive {
		opts.File = cfg.Log.File
	}
	logger, logs, err := logging.New(opts, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		logs:   logs,
		client: api.NewClient(cfg),
	}, nil
}

func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing store", "err", err)
		}
	}
	s.logs.Close()
}

func (s *session) openStore() (store.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	st, err := store.NewSQLiteStore(s.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	s.store = st
	return st, nil
}

// baseGrammar is the built-in grammar with the configured year window.
func (s *session) baseGrammar() grammar.Grammar {
	g := grammar.Default()
	g.Years = grammar.YearWindow{Back: s.cfg.Events.YearsBack, Ahead: s.cfg.Events.YearsAhead}
	return g
}

// resolveGrammar layers the backend's marker config and then the local
// override file over baseGrammar.
func (s *session) resolveGrammar(ctx context.Context) grammar.Grammar {
	ctx, cancel := context.WithTimeout(ctx, grammarTimeout)
	defer cancel()

	sources := []grammar.Source{s.client}
	if s.cfg.GrammarFile != "" {
		sources = append(sources, grammar.FileSource{Path: s.cfg.GrammarFile})
	}
	return grammar.Resolve(ctx, s.logger, s.baseGrammar(), sources...)
}

func (s *session) deps(g grammar.Grammar) conversation.Deps {
	mode, err := events.ParseSortMode(s.cfg.Events.Sort)
	if err != nil {
		s.logger.Warn("unknown events.sort, using chronological", "sort", s.cfg.Events.Sort)
	}
	validator := places.Validator{
		Gazetteer:  s.cfg.Localities,
		Indicators: s.cfg.LocalityIndicators,
	}

	d := conversation.Deps{
		Opener:   s.client,
		Parser:   turn.NewParser(g, validator, mode, s.logger),
		Enricher: places.NewEnricher(s.client, s.cfg.Places.LookupRPS, s.cfg.Places.LookupBurst, s.logger),
		Stream: stream.Options{
			MaxRetries:  s.cfg.Stream.MaxRetries,
			Timeout:     s.cfg.Stream.Timeout,
			TimeoutStep: s.cfg.Stream.TimeoutStep,
			RetryDelay:  s.cfg.Stream.RetryDelay,
			Logger:      s.logger,
		},
		City:   s.cfg.City,
		Logger: s.logger,
	}
	if st, err := s.openStore(); err != nil {
		s.logger.Warn("history disabled", "err", err)
	} else {
		d.Store = st
	}
	return d
}

func (s *session) newConversation(g grammar.Grammar) *conversation.Conversation {
	return conversation.New(s.deps(g))
}

// latest reopens the most recently updated conversation.
func (s *session) latest(ctx context.Context, g grammar.Grammar) (*conversation.Conversation, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, err
	}
	convs, err := st.Conversations(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil, fmt.Errorf("no conversations yet. Run: teca ask <question>")
	}
	return s.restore(ctx, convs[0].ID, g)
}

// restore reopens a stored conversation by id or id prefix.
func (s *session) restore(ctx context.Context, id string, g grammar.Grammar) (*conversation.Conversation, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, err
	}
	conv, err := st.Conversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding conversation %s: %w", id, err)
	}
	entries, err := st.Messages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conversation.Restore(s.deps(g), conv.ID, entries), nil
}
