package reveal

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// DefaultStep is how many display cells the typewriter advances per tick.
const DefaultStep = 3

// Typewriter reveals text progressively. Each Advance uncovers up to Step
// display cells, so wide runes take two cells of the budget.
type Typewriter struct {
	Step int

	text []rune
	pos  int
}

func NewTypewriter(step int) *Typewriter {
	if step <= 0 {
		step = DefaultStep
	}
	return &Typewriter{Step: step}
}

// Sync replaces the text. When the new text extends the old one, typing
// continues from the current position; otherwise it starts over.
func (t *Typewriter) Sync(text string) {
	old := string(t.text)
	if text == old {
		return
	}
	if !strings.HasPrefix(text, old) {
		t.pos = 0
	}
	t.text = []rune(text)
	if t.pos > len(t.text) {
		t.pos = len(t.text)
	}
}

// Advance uncovers the next step and reports whether anything changed.
func (t *Typewriter) Advance() bool {
	if t.Done() {
		return false
	}
	budget := t.Step
	if budget <= 0 {
		budget = DefaultStep
	}
	start := t.pos
	for t.pos < len(t.text) {
		w := runewidth.RuneWidth(t.text[t.pos])
		if t.pos > start && w > budget {
			break
		}
		t.pos++
		budget -= w
		if budget <= 0 {
			break
		}
	}
	return t.pos > start
}

func (t *Typewriter) Finish() {
	t.pos = len(t.text)
}

func (t *Typewriter) Done() bool {
	return t.pos >= len(t.text)
}

// Visible is the typed prefix.
func (t *Typewriter) Visible() string {
	return string(t.text[:t.pos])
}

func (t *Typewriter) Text() string {
	return string(t.text)
}
