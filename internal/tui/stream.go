package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"teca-cli/internal/conversation"
	"teca-cli/internal/grammar"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

// ─── Messages sent from the turn goroutine to Bubble Tea ────────────────────
//
// Every message carries the generation of the turn that produced it. The
// model bumps its generation on cancel, skip and /new, so anything still in
// flight from an older turn is dropped on arrival.

type turnChunkMsg struct {
	gen   uint64
	text  string
	first bool
}

type turnStateMsg struct {
	gen     uint64
	state   stream.State
	attempt int
}

type turnDoneMsg struct {
	gen uint64
	msg *turn.Message
}

type turnErrMsg struct {
	gen uint64
	err error
}

// typeTickMsg advances the typewriter; revealTickMsg re-checks the card
// schedule.
type typeTickMsg struct{ gen uint64 }

type revealTickMsg struct{ gen uint64 }

type grammarLoadedMsg struct {
	grammar grammar.Grammar
}

// ─── Turn command ───────────────────────────────────────────────────────────
//
// Runs the turn in a goroutine and streams progress through a channel; the
// returned tea.Cmd reads one message at a time and Update re-arms it after
// each chunk or state change.

type turnKind int

const (
	turnAsk turnKind = iota
	turnMore
)

func beginTurn(ctx context.Context, conv *conversation.Conversation, kind turnKind, query string, gen uint64) (tea.Cmd, <-chan tea.Msg) {
	ch := make(chan tea.Msg, 64)

	go func() {
		defer close(ch)

		send := func(msg tea.Msg) {
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		}
		hooks := conversation.Hooks{
			OnChunk: func(text string, first bool) {
				send(turnChunkMsg{gen: gen, text: text, first: first})
			},
			OnState: func(s stream.State, attempt int) {
				send(turnStateMsg{gen: gen, state: s, attempt: attempt})
			},
		}

		var (
			msg *turn.Message
			err error
		)
		switch kind {
		case turnMore:
			msg, err = conv.SeeMore(ctx, query, hooks)
		default:
			msg, err = conv.Ask(ctx, query, hooks)
		}
		if err != nil {
			send(turnErrMsg{gen: gen, err: err})
			return
		}
		send(turnDoneMsg{gen: gen, msg: msg})
	}()

	return waitForTurn(ch), ch
}

// waitForTurn reads the next message from the channel.
func waitForTurn(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func typeTick(gen uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return typeTickMsg{gen: gen} })
}

func revealTick(gen uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return revealTickMsg{gen: gen} })
}

func loadGrammar(load func(context.Context) grammar.Grammar) tea.Cmd {
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return grammarLoadedMsg{grammar: load(ctx)}
	}
}
