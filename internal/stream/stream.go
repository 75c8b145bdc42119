package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the ingestor's position in a single user turn. Sending only
// precedes the first attempt; a retry goes from Retrying straight to
// Streaming.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Retrying
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Request is one user turn as sent to the backend.
type Request struct {
	ConversationID string
	Prompt         string
	City           string
}

// Opener starts a streamed response for req.
type Opener interface {
	OpenStream(ctx context.Context, req Request) (io.ReadCloser, error)
}

// ChunkFunc receives each text delta. first is true for the first delta of
// an attempt, so a caller displaying partial text must reset on it.
type ChunkFunc func(text string, first bool)

type Options struct {
	MaxRetries  int
	Timeout     time.Duration
	TimeoutStep time.Duration
	RetryDelay  time.Duration

	// Live is consulted before every retry; a turn that is no longer live is
	// abandoned instead of retried.
	Live       func() bool
	OnState    func(s State, attempt int)
	OnComplete func(text string)
	Logger     *slog.Logger
}

// DefaultOptions mirrors the stream.* config defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  2,
		Timeout:     30 * time.Second,
		TimeoutStep: 15 * time.Second,
		RetryDelay:  time.Second,
	}
}

// Ingestor consumes a streamed assistant response with an inactivity
// watchdog and whole-request retries.
type Ingestor struct {
	opener Opener
	opts   Options
	logger *slog.Logger
}

func New(opener Opener, opts Options) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Ingestor{opener: opener, opts: opts, logger: logger}
}

// Attempts is the attempt ceiling: the first try plus every retry.
func (in *Ingestor) Attempts() int {
	return in.opts.MaxRetries + 1
}

func (in *Ingestor) setState(s State, attempt int) {
	in.logger.Debug("stream state", "state", s.String(), "attempt", attempt)
	if in.opts.OnState != nil {
		in.opts.OnState(s, attempt)
	}
}

func (in *Ingestor) live() bool {
	return in.opts.Live == nil || in.opts.Live()
}

// Run sends req and returns the accumulated text of the first attempt that
// completes with data. Every failure, including backend error frames, is
// retried until the ceiling; then an *ExhaustedError is returned. A
// cancelled ctx ends the turn immediately with ctx's error.
func (in *Ingestor) Run(ctx context.Context, req Request, onChunk ChunkFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt < in.Attempts(); attempt++ {
		if attempt > 0 {
			if !in.live() {
				in.setState(Failed, attempt)
				return "", ErrAbandoned
			}
			in.setState(Retrying, attempt)
			if err := sleep(ctx, in.opts.RetryDelay*time.Duration(attempt)); err != nil {
				in.setState(Failed, attempt)
				return "", err
			}
		}

		if attempt == 0 {
			in.setState(Sending, attempt)
		}
		text, err := in.attempt(ctx, req, attempt, onChunk)
		if err == nil {
			in.setState(Succeeded, attempt)
			if in.opts.OnComplete != nil {
				in.opts.OnComplete(text)
			}
			return text, nil
		}
		if ctx.Err() != nil {
			in.setState(Failed, attempt)
			return "", ctx.Err()
		}
		lastErr = err
		in.logger.Warn("stream attempt failed",
			"attempt", attempt+1,
			"max_attempts", in.Attempts(),
			"err", err,
		)
	}

	in.setState(Failed, in.opts.MaxRetries)
	err := &ExhaustedError{Attempts: in.Attempts(), Err: lastErr}
	in.logger.Error("stream failed", "err", err)
	return "", err
}

func (in *Ingestor) watchdogFor(attempt int) time.Duration {
	return in.opts.Timeout + time.Duration(attempt)*in.opts.TimeoutStep
}

func (in *Ingestor) attempt(ctx context.Context, req Request, attempt int, onChunk ChunkFunc) (string, error) {
	actx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The watchdog covers the open as well: a backend that never answers
	// the request counts as inactive.
	var (
		mu   sync.Mutex
		body io.ReadCloser
	)
	window := in.watchdogFor(attempt)
	var watchdog *time.Timer
	if window > 0 {
		watchdog = time.AfterFunc(window, func() {
			cancel(ErrInactivity)
			mu.Lock()
			if body != nil {
				body.Close()
			}
			mu.Unlock()
		})
		defer watchdog.Stop()
	}

	b, err := in.opener.OpenStream(actx, req)
	if err != nil {
		if errors.Is(context.Cause(actx), ErrInactivity) {
			return "", ErrInactivity
		}
		return "", fmt.Errorf("opening stream: %w", err)
	}
	mu.Lock()
	body = b
	mu.Unlock()
	defer b.Close()

	if errors.Is(context.Cause(actx), ErrInactivity) {
		return "", ErrInactivity
	}
	if watchdog != nil {
		watchdog.Reset(window)
	}

	in.setState(Streaming, attempt)

	var acc strings.Builder
	first := true

	scanner := bufio.NewScanner(b)
	// Large deltas carry whole card payloads.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		kind, payload := parseLine(scanner.Text())
		switch kind {
		case frameSkip:
			continue
		case frameError:
			return acc.String(), &BackendError{Message: payload}
		case frameDone:
			return finish(acc.String())
		case frameText:
			if watchdog != nil {
				watchdog.Reset(window)
			}
			acc.WriteString(payload)
			if onChunk != nil {
				onChunk(payload, first)
			}
			first = false
		}
	}

	if cause := context.Cause(actx); errors.Is(cause, ErrInactivity) {
		return acc.String(), ErrInactivity
	}
	if err := scanner.Err(); err != nil {
		return acc.String(), fmt.Errorf("reading stream: %w", err)
	}
	if err := actx.Err(); err != nil {
		return acc.String(), err
	}
	return finish(acc.String())
}

func finish(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoData
	}
	return text, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
