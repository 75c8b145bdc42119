package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"teca-cli/internal/events"
	"teca-cli/internal/places"
	"teca-cli/internal/turn"
)

func TestContentWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, maxContentWidth},
		{200, maxContentWidth},
		{60, 60},
		{10, 20},
	}
	for _, tt := range tests {
		if got := contentWidth(tt.in); got != tt.want {
			t.Errorf("contentWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRenderEventCard(t *testing.T) {
	card := renderEventCard(events.Record{
		Title:       "Festival de Cine",
		Date:        "2025-10-10",
		EndDate:     "2025-10-12",
		Time:        "20:00",
		Location:    "Teatro Auditori",
		SourceURL:   "https://example.org/cine",
		SourceTitle: "Agenda municipal",
	}, 80)

	for _, want := range []string{"Festival de Cine", "20:00", "Teatro Auditori", "Agenda municipal"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}
}

func TestRenderEventCardTruncatesLongTitle(t *testing.T) {
	title := strings.Repeat("Concierto ", 20)
	card := renderEventCard(events.Record{Title: title, Date: "2025-10-10"}, 40)

	if !strings.Contains(card, "…") {
		t.Errorf("long title not truncated:\n%s", card)
	}
	for _, line := range strings.Split(card, "\n") {
		if w := runewidth.StringWidth(line); w > contentWidth(40) {
			t.Errorf("line width %d exceeds %d: %q", w, contentWidth(40), line)
		}
	}
}

func TestRenderPlaceCard(t *testing.T) {
	t.Run("enriched", func(t *testing.T) {
		card := renderPlaceCard(places.Record{
			Name:    "Vilamuseu",
			Address: "C/ Barranquet 1",
			Rating:  4.6,
			Phone:   "965 00 00 00",
			Website: "https://vilamuseu.es",
		}, 80)
		for _, want := range []string{"Vilamuseu", "Barranquet", "★ 4.6", "965 00 00 00", "vilamuseu.es"} {
			if !strings.Contains(card, want) {
				t.Errorf("card missing %q:\n%s", want, card)
			}
		}
	})

	t.Run("pending", func(t *testing.T) {
		card := renderPlaceCard(places.Record{Name: "Playa Centro", SearchQuery: "Playa Centro Villajoyosa"}, 80)
		if !strings.Contains(card, "🔎 Playa Centro Villajoyosa") {
			t.Errorf("pending place should show its search:\n%s", card)
		}
	})
}

func TestRenderCardsLimit(t *testing.T) {
	msg := &turn.Message{
		Events: []events.Record{{Title: "Uno", Date: "2025-10-10"}, {Title: "Dos", Date: "2025-10-11"}},
		Places: []places.Record{{Name: "Tres"}},
		Link:   &turn.ActionLink{Text: "Cuatro", URL: "https://example.org"},
	}

	tests := []struct {
		n       int
		present []string
		absent  []string
	}{
		{0, nil, []string{"Uno"}},
		{1, []string{"Uno"}, []string{"Dos"}},
		{3, []string{"Uno", "Dos", "Tres"}, []string{"Cuatro"}},
		{10, []string{"Uno", "Dos", "Tres", "Cuatro"}, nil},
	}
	for _, tt := range tests {
		got := renderCards(msg, tt.n, 80)
		for _, s := range tt.present {
			if !strings.Contains(got, s) {
				t.Errorf("renderCards(n=%d) missing %q", tt.n, s)
			}
		}
		for _, s := range tt.absent {
			if strings.Contains(got, s) {
				t.Errorf("renderCards(n=%d) has %q", tt.n, s)
			}
		}
	}
}

func TestRenderMessageExtras(t *testing.T) {
	msg := &turn.Message{
		Text:          "Hay varios eventos.",
		Events:        []events.Record{{Title: "Mercado", Date: "2025-10-11"}},
		HasMoreEvents: true,
		MapQuery:      "Plaza Mayor Villajoyosa",
		Download:      &turn.Download{FileName: "bases.pdf"},
	}

	got := renderMessage(msg, nil, 80)
	for _, want := range []string{"Hay varios eventos.", "Mercado", "/more", "Plaza Mayor Villajoyosa", "bases.pdf"} {
		if !strings.Contains(got, want) {
			t.Errorf("message missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Hay varios") > strings.Index(got, "Mercado") {
		t.Error("text should come before the cards")
	}
}

func TestRenderMessageWithoutMore(t *testing.T) {
	got := renderMessage(&turn.Message{Text: "Hola"}, nil, 80)
	if strings.Contains(got, "/more") {
		t.Errorf("unexpected more hint:\n%s", got)
	}
}

func TestRenderMarkdownPlainFallback(t *testing.T) {
	if got := renderMarkdown(nil, "**hola**"); got != "**hola**" {
		t.Errorf("renderMarkdown(nil) = %q", got)
	}
	r := newMarkdownRenderer(60)
	if r == nil {
		t.Skip("no markdown renderer in this environment")
	}
	if got := renderMarkdown(r, "**hola**"); !strings.Contains(got, "hola") || strings.Contains(got, "**") {
		t.Errorf("renderMarkdown = %q", got)
	}
}

func TestRenderTyping(t *testing.T) {
	msg := &turn.Message{
		Text:   "Buenos días",
		Events: []events.Record{{Title: "Mercado", Date: "2025-10-11"}},
	}
	if got := renderTyping("Buenos", msg, 0, 80); !strings.Contains(got, "Buenos") || strings.Contains(got, "Mercado") {
		t.Errorf("renderTyping(0 cards) = %q", got)
	}
	if got := renderTyping("Buenos días", msg, 1, 80); !strings.Contains(got, "Mercado") {
		t.Errorf("renderTyping(1 card) = %q", got)
	}
}

func TestRenderWelcome(t *testing.T) {
	got := renderWelcome("1.0.0", "", "")
	if !strings.Contains(got, "v1.0.0") || !strings.Contains(got, "teca config set server") {
		t.Errorf("welcome without server:\n%s", got)
	}
	got = renderWelcome("1.0.0", "https://teca.example.org", "Villajoyosa")
	if !strings.Contains(got, "teca.example.org") || !strings.Contains(got, "Villajoyosa") {
		t.Errorf("welcome with server:\n%s", got)
	}
}
