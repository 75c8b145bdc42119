package reveal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func TestRevealOrderingWaitsForTyping(t *testing.T) {
	s := NewScheduler(500 * time.Millisecond)
	s.Sync(Key{MessageID: "m1", Text: "Hola", Cards: 3}, t0)

	for _, dt := range []time.Duration{0, time.Second, time.Minute} {
		for i := 0; i < 3; i++ {
			assert.False(t, s.ShouldReveal(i, t0.Add(dt)), "card %d revealed before typing at +%v", i, dt)
		}
	}
	_, ok := s.NextReveal(t0)
	assert.False(t, ok)

	done := t0.Add(2 * time.Second)
	s.SetTypingComplete(done)

	assert.True(t, s.ShouldReveal(0, done))
	assert.False(t, s.ShouldReveal(1, done))

	at1 := done.Add(500 * time.Millisecond)
	assert.True(t, s.ShouldReveal(1, at1))
	assert.False(t, s.ShouldReveal(2, at1))

	at2 := done.Add(time.Second)
	assert.True(t, s.ShouldReveal(2, at2))
	assert.True(t, s.Done(at2))
	assert.False(t, s.ShouldReveal(3, at2), "out of range index")
}

func TestEmptyTextRevealsImmediately(t *testing.T) {
	s := NewScheduler(time.Second)
	s.Sync(Key{MessageID: "m1", Cards: 2}, t0)

	assert.True(t, s.ShouldReveal(0, t0))
	assert.Equal(t, State{VisibleCards: 1, TextRevealComplete: true}, s.State(t0))

	wait, ok := s.NextReveal(t0.Add(300 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 700*time.Millisecond, wait)
}

func TestSyncRestartsOnKeyChange(t *testing.T) {
	s := NewScheduler(100 * time.Millisecond)
	k := Key{MessageID: "m1", Text: "Hola", Cards: 1}
	require.True(t, s.Sync(k, t0))
	s.SetTypingComplete(t0)
	require.True(t, s.ShouldReveal(0, t0))

	assert.False(t, s.Sync(k, t0.Add(time.Second)), "same key must not restart")
	assert.True(t, s.ShouldReveal(0, t0.Add(time.Second)))

	grown := Key{MessageID: "m1", Text: "Hola mundo", Cards: 2}
	assert.True(t, s.Sync(grown, t0.Add(time.Second)))
	assert.False(t, s.ShouldReveal(0, t0.Add(time.Second)))
	assert.False(t, s.TypingComplete())

	assert.True(t, s.Sync(Key{MessageID: "m2", Text: "Hola mundo", Cards: 2}, t0))
}

func TestSkipRevealsEverything(t *testing.T) {
	s := NewScheduler(time.Hour)
	s.Sync(Key{MessageID: "m1", Text: "texto largo", Cards: 4}, t0)
	s.Skip(t0)

	assert.Equal(t, 4, s.Visible(t0))
	assert.True(t, s.Done(t0))
	_, ok := s.NextReveal(t0)
	assert.False(t, ok)
}

func TestSetTypingCompleteOnlyOnce(t *testing.T) {
	s := NewScheduler(time.Second)
	s.Sync(Key{MessageID: "m1", Text: "x", Cards: 2}, t0)
	s.SetTypingComplete(t0)
	s.SetTypingComplete(t0.Add(time.Hour))
	assert.Equal(t, 2, s.Visible(t0.Add(time.Second)))
}

func TestNoCards(t *testing.T) {
	s := NewScheduler(time.Second)
	s.Sync(Key{MessageID: "m1", Text: "x"}, t0)
	assert.False(t, s.Done(t0))
	s.SetTypingComplete(t0)
	assert.True(t, s.Done(t0))
	assert.False(t, s.ShouldReveal(0, t0))
}

func TestTypewriterAdvance(t *testing.T) {
	tw := NewTypewriter(3)
	tw.Sync("Hola mundo")

	require.True(t, tw.Advance())
	assert.Equal(t, "Hol", tw.Visible())
	for tw.Advance() {
	}
	assert.True(t, tw.Done())
	assert.Equal(t, "Hola mundo", tw.Visible())
	assert.False(t, tw.Advance())
}

func TestTypewriterWideRunes(t *testing.T) {
	tw := NewTypewriter(4)
	tw.Sync("日本語です")
	tw.Advance()
	assert.Equal(t, "日本", tw.Visible())

	tw = NewTypewriter(1)
	tw.Sync("日本")
	tw.Advance()
	assert.Equal(t, "日", tw.Visible(), "a wide rune always makes progress")
}

func TestTypewriterSync(t *testing.T) {
	tw := NewTypewriter(2)
	tw.Sync("Hola")
	tw.Advance()
	require.Equal(t, "Ho", tw.Visible())

	tw.Sync("Hola mundo")
	assert.Equal(t, "Ho", tw.Visible(), "extension keeps position")

	tw.Sync("Adiós")
	assert.Equal(t, "", tw.Visible(), "replacement starts over")

	tw.Finish()
	assert.Equal(t, "Adiós", tw.Visible())
}

func TestTypewriterEmpty(t *testing.T) {
	tw := NewTypewriter(0)
	assert.Equal(t, DefaultStep, tw.Step)
	assert.True(t, tw.Done())
	assert.False(t, tw.Advance())
}
