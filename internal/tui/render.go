package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"teca-cli/internal/display"
	"teca-cli/internal/events"
	"teca-cli/internal/places"
	"teca-cli/internal/turn"
)

const maxContentWidth = 80

// ─── Welcome Screen ─────────────────────────────────────────────────────────

const tecaLogo = `
 ▀█▀ █▀▀ █▀▀ ▄▀█
  █  ██▄ █▄▄ █▀█`

func renderWelcome(version, server, city string) string {
	titleLine := logoTitleStyle.Render("Teca") + " " + versionStyle.Render("v"+version)

	var infoLine string
	if server == "" {
		infoLine = welcomeHintStyle.Render("Run `teca config set server <url>` to get started")
	} else {
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %s",
			runewidth.Truncate(server, 40, "..."),
			runewidth.Truncate(city, 30, "...")))
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n", logoStyle.Render(tecaLogo), titleLine, infoLine)
}

// ─── Markdown ───────────────────────────────────────────────────────────────

// newMarkdownRenderer builds the renderer for finished answers. A nil
// renderer means plain text.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(contentWidth(width)),
	)
	if err != nil {
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, text string) string {
	if r == nil || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// ─── Cards ──────────────────────────────────────────────────────────────────

func contentWidth(width int) int {
	if width <= 0 || width > maxContentWidth {
		return maxContentWidth
	}
	if width < 20 {
		return 20
	}
	return width
}

// cardInner is the text width inside a card's border and padding.
func cardInner(width int) int {
	return contentWidth(width) - 6
}

func fit(s string, w int) string {
	return runewidth.Truncate(s, w, "…")
}

func renderEventCard(e events.Record, width int) string {
	w := cardInner(width)
	lines := []string{
		eventTitleStyle.Render(fit(e.Title, w)),
	}
	when := display.DateRange(e)
	if e.Time != "" {
		when += " · " + e.Time
	}
	lines = append(lines, eventDateStyle.Render(fit("📅 "+when, w)))
	if e.Location != "" {
		lines = append(lines, cardMetaStyle.Render(fit("📍 "+e.Location, w)))
	}
	if e.SourceURL != "" {
		label := e.SourceTitle
		if label == "" {
			label = e.SourceURL
		}
		lines = append(lines, linkStyle.Render(fit(label, w)))
	}
	return cardStyle.Width(w + 2).Render(strings.Join(lines, "\n"))
}

func renderPlaceCard(p places.Record, width int) string {
	w := cardInner(width)
	lines := []string{placeNameStyle.Render(fit(p.Name, w))}
	if p.Address != "" {
		lines = append(lines, cardMetaStyle.Render(fit("📍 "+p.Address, w)))
	}
	var meta []string
	if p.Rating > 0 {
		meta = append(meta, fmt.Sprintf("★ %.1f", p.Rating))
	}
	if p.Phone != "" {
		meta = append(meta, p.Phone)
	}
	if len(meta) > 0 {
		lines = append(lines, cardMetaStyle.Render(fit(strings.Join(meta, " · "), w)))
	}
	switch {
	case p.Website != "":
		lines = append(lines, linkStyle.Render(fit(p.Website, w)))
	case p.MapsURL != "":
		lines = append(lines, linkStyle.Render(fit(p.MapsURL, w)))
	}
	if !p.Enriched() && p.SearchQuery != "" {
		lines = append(lines, dimStyle.Render(fit("🔎 "+p.SearchQuery, w)))
	}
	return cardStyle.Width(w + 2).Render(strings.Join(lines, "\n"))
}

func renderLinkCard(l *turn.ActionLink, width int) string {
	w := cardInner(width)
	body := lipgloss.JoinVertical(lipgloss.Left,
		eventTitleStyle.Render(fit("🔗 "+l.Text, w)),
		linkStyle.Render(fit(l.URL, w)),
	)
	return cardStyle.Width(w + 2).Render(body)
}

// renderCard renders one revealable card of msg.
func renderCard(msg *turn.Message, c turn.Card, width int) string {
	switch c.Kind {
	case turn.CardEvent:
		return renderEventCard(msg.Events[c.Index], width)
	case turn.CardPlace:
		return renderPlaceCard(msg.Places[c.Index], width)
	case turn.CardLink:
		if msg.Link != nil {
			return renderLinkCard(msg.Link, width)
		}
	}
	return ""
}

// renderCards renders the first n cards of msg in reveal order.
func renderCards(msg *turn.Message, n, width int) string {
	cards := msg.Cards()
	if n > len(cards) {
		n = len(cards)
	}
	var out []string
	for _, c := range cards[:n] {
		if s := renderCard(msg, c, width); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

// renderExtras renders the non-card parts of a message: map request,
// document download and the see-more hint.
func renderExtras(msg *turn.Message) string {
	var lines []string
	if msg.MapQuery != "" {
		lines = append(lines, dimStyle.Render("  🗺  Mapa: ")+msg.MapQuery)
	}
	if msg.Download != nil {
		lines = append(lines, dimStyle.Render("  📄 Documento: ")+msg.Download.FileName)
	}
	if msg.HasMoreEvents {
		lines = append(lines, moreHintStyle.Render("  … hay más eventos, escribe /more para verlos"))
	}
	return strings.Join(lines, "\n")
}

// renderMessage is the final, fully revealed form of a reply as printed
// above the prompt.
func renderMessage(msg *turn.Message, md *glamour.TermRenderer, width int) string {
	var parts []string
	if strings.TrimSpace(msg.Text) != "" {
		parts = append(parts, renderMarkdown(md, msg.Text))
	}
	if cards := renderCards(msg, len(msg.Cards()), width); cards != "" {
		parts = append(parts, cards)
	}
	if extras := renderExtras(msg); extras != "" {
		parts = append(parts, extras)
	}
	return strings.Join(parts, "\n\n")
}

// renderTyping is the in-progress view of a reply: the typed prefix of the
// text and the cards revealed so far.
func renderTyping(typed string, msg *turn.Message, visible, width int) string {
	var parts []string
	if typed != "" {
		parts = append(parts, lipgloss.NewStyle().Width(contentWidth(width)).Render(typed))
	}
	if visible > 0 {
		parts = append(parts, renderCards(msg, visible, width))
	}
	return strings.Join(parts, "\n\n")
}
