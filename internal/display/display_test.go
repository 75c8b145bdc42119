package display

import (
	"strings"
	"testing"
	"time"

	"teca-cli/internal/events"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
)

func TestStateLabel(t *testing.T) {
	tests := []struct {
		state    stream.State
		contains string
	}{
		{stream.Idle, "Listo"},
		{stream.Sending, "Enviando"},
		{stream.Streaming, "Recibiendo"},
		{stream.Retrying, "Reintentando"},
		{stream.Succeeded, "Completado"},
		{stream.Failed, "Error"},
	}

	for _, tt := range tests {
		label := StateLabel(tt.state)
		if !strings.Contains(label, tt.contains) {
			t.Errorf("StateLabel(%v) = %q, expected to contain %q", tt.state, label, tt.contains)
		}
		if !strings.Contains(label, Reset) {
			t.Errorf("StateLabel(%v) = %q, expected ANSI-colored output", tt.state, label)
		}
	}

	// Unknown state falls back to its String form
	unknown := StateLabel(stream.State(99))
	if unknown != "state(99)" {
		t.Errorf("StateLabel(unknown) = %q, expected %q", unknown, "state(99)")
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		rec  events.Record
		want string
	}{
		{events.Record{Date: "2025-07-20"}, "2025-07-20"},
		{events.Record{Date: "2025-07-20", EndDate: "2025-07-20"}, "2025-07-20"},
		{events.Record{Date: "2025-07-20", EndDate: "2025-07-27"}, "2025-07-20 → 2025-07-27"},
	}
	for _, tt := range tests {
		if got := DateRange(tt.rec); got != tt.want {
			t.Errorf("DateRange(%+v) = %q, want %q", tt.rec, got, tt.want)
		}
	}
}

func TestEventLine(t *testing.T) {
	line := EventLine(events.Record{
		Title:    "Moros y Cristianos",
		Date:     "2025-07-24",
		EndDate:  "2025-07-31",
		Time:     "20:00",
		Location: "Playa Centro",
	})
	for _, want := range []string{"Moros y Cristianos", "2025-07-24 → 2025-07-31", "20:00", "@ Playa Centro"} {
		if !strings.Contains(line, want) {
			t.Errorf("EventLine() = %q, missing %q", line, want)
		}
	}

	bare := EventLine(events.Record{Title: "Mercado", Date: "2025-05-03"})
	if strings.Contains(bare, "@") {
		t.Errorf("EventLine() without location = %q", bare)
	}
}

func TestPlaceLine(t *testing.T) {
	enriched := PlaceLine(places.Record{Name: "Vilamuseu", Address: "C/ Barranquet 1", Rating: 4.6})
	if !strings.Contains(enriched, "C/ Barranquet 1") || !strings.Contains(enriched, "4.6") {
		t.Errorf("PlaceLine(enriched) = %q", enriched)
	}

	pending := PlaceLine(places.Record{Name: "Torre de Aguiló", IsLoadingDetails: true})
	if !strings.Contains(pending, "sin detalles") {
		t.Errorf("PlaceLine(pending) = %q", pending)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"corto", 10, "corto"},
		{"¿Qué hay  este\nfin de semana?", 12, "¿Qué hay es…"},
		{"abc", 1, "a"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(string) bool
	}{
		{
			name:  "RFC3339",
			input: "2024-01-15T10:30:00Z",
			check: func(s string) bool {
				_, err := time.Parse("2006-01-02 15:04:05", s)
				return err == nil
			},
		},
		{
			name:  "RFC3339Nano",
			input: "2024-01-15T10:30:00.123456789Z",
			check: func(s string) bool {
				_, err := time.Parse("2006-01-02 15:04:05", s)
				return err == nil
			},
		},
		{
			name:  "invalid input",
			input: "not-a-date",
			check: func(s string) bool {
				return s == "not-a-date"
			},
		},
		{
			name:  "empty string",
			input: "",
			check: func(s string) bool {
				return s == ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatTime(tt.input)
			if !tt.check(result) {
				t.Errorf("FormatTime(%q) = %q, unexpected result", tt.input, result)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(time.Time{}); got != "" {
		t.Errorf("FormatTimestamp(zero) = %q", got)
	}
	ts := time.Date(2025, 7, 24, 18, 0, 0, 0, time.UTC)
	if _, err := time.Parse("2006-01-02 15:04:05", FormatTimestamp(ts)); err != nil {
		t.Errorf("FormatTimestamp() unparsable: %v", err)
	}
}
