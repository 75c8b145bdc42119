package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"teca-cli/internal/events"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

func Header(text string) {
	fmt.Printf("\n%s%s%s\n", Bold+Cyan, text, Reset)
	fmt.Println(strings.Repeat("─", min(len(text)+4, 80)))
}

func SubHeader(text string) {
	fmt.Printf("%s%s%s\n", Bold+White, text, Reset)
}

func Success(text string) {
	fmt.Printf("%s✓%s %s\n", Green, Reset, text)
}

func Error(text string) {
	fmt.Fprintf(os.Stderr, "%s✗%s %s\n", Red, Reset, text)
}

func Warn(text string) {
	fmt.Printf("%s!%s %s\n", Yellow, Reset, text)
}

func Info(label, value string) {
	fmt.Printf("  %s%-20s%s %s\n", Dim, label, Reset, value)
}

func Spinner(text string) {
	fmt.Printf("\r%s⟳%s %s", Yellow, Reset, text)
}

func ClearLine() {
	fmt.Print("\r\033[K")
}

// StateLabel renders a stream state for the status line.
func StateLabel(s stream.State) string {
	switch s {
	case stream.Idle:
		return Gray + "· Listo" + Reset
	case stream.Sending:
		return Yellow + "⟳ Enviando" + Reset
	case stream.Streaming:
		return Cyan + "⟳ Recibiendo" + Reset
	case stream.Retrying:
		return Yellow + "↻ Reintentando" + Reset
	case stream.Succeeded:
		return Green + "✓ Completado" + Reset
	case stream.Failed:
		return Red + "✗ Error" + Reset
	}
	return s.String()
}

// DateRange formats an event's days: "2025-07-20" or "2025-07-20 → 2025-07-27".
func DateRange(r events.Record) string {
	if r.IsRange() {
		return r.Date + " → " + r.EndDate
	}
	return r.Date
}

// EventLine is a one-line summary of an event card.
func EventLine(r events.Record) string {
	var b strings.Builder
	b.WriteString(Bold + r.Title + Reset)
	b.WriteString("  " + Cyan + DateRange(r) + Reset)
	if r.Time != "" {
		b.WriteString(" " + r.Time)
	}
	if r.Location != "" {
		b.WriteString(Gray + " @ " + r.Location + Reset)
	}
	return b.String()
}

// PlaceLine is a one-line summary of a place card.
func PlaceLine(p places.Record) string {
	var b strings.Builder
	b.WriteString(Bold + p.Name + Reset)
	switch {
	case p.Address != "":
		b.WriteString(Gray + "  " + p.Address + Reset)
	case p.IsLoadingDetails:
		b.WriteString(Gray + "  (sin detalles)" + Reset)
	}
	if p.Rating > 0 {
		b.WriteString(fmt.Sprintf("  %s★ %.1f%s", Yellow, p.Rating, Reset))
	}
	return b.String()
}

// Message prints a resolved assistant turn with its cards below the text.
func Message(m *turn.Message) {
	if m.Text != "" {
		fmt.Println(m.Text)
	}
	if len(m.Events) > 0 {
		fmt.Println()
		SubHeader("Eventos")
		for _, e := range m.Events {
			fmt.Printf("  • %s\n", EventLine(e))
			if e.SourceURL != "" {
				fmt.Printf("    %s%s%s\n", Dim, e.SourceURL, Reset)
			}
		}
		if m.HasMoreEvents {
			fmt.Printf("  %s… hay más eventos: teca more%s\n", Gray, Reset)
		}
	}
	if len(m.Places) > 0 {
		fmt.Println()
		SubHeader("Lugares")
		for _, p := range m.Places {
			fmt.Printf("  • %s\n", PlaceLine(p))
		}
	}
	if m.MapQuery != "" {
		Info("Mapa", m.MapQuery)
	}
	if m.Download != nil {
		Info("Descarga", m.Download.FileName)
	}
	if m.Link != nil {
		Info(m.Link.Text, Blue+m.Link.URL+Reset)
	}
}

// Truncate shortens s to n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func FormatTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return ts
		}
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatTimestamp is FormatTime for a parsed time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
