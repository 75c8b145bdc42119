// Command preview prints a sample reply with the non-interactive renderer,
// for checking colors and layout in a real terminal.
package main

import (
	"fmt"
	"time"

	"teca-cli/internal/display"
	"teca-cli/internal/events"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

func main() {
	today := time.Now()
	day := func(n int) string { return today.AddDate(0, 0, n).Format("2006-01-02") }

	msg := &turn.Message{
		Text: "Este fin de semana hay bastante movimiento en la Vila:",
		Events: []events.Record{
			{Title: "Mercado medieval", Date: day(1), EndDate: day(3), Location: "Casco antiguo"},
			{Title: "Concierto de la banda municipal", Date: day(2), Time: "20:00", Location: "Plaza de la Generalitat",
				SourceURL: "https://example.org/agenda"},
			{Title: "Ruta guiada por el Vilamuseu", Date: day(2), Time: "11:00"},
		},
		HasMoreEvents: true,
		Places: []places.Record{
			{Name: "Vilamuseu", Address: "C/ Barranquet 1", Rating: 4.6, Phone: "965 00 00 00"},
			{Name: "Playa Centro", SearchQuery: "Playa Centro Villajoyosa", IsLoadingDetails: true},
		},
		MapQuery: "Casco antiguo Villajoyosa",
		Download: &turn.Download{FileName: "programa-fiestas.pdf"},
		Link:     &turn.ActionLink{Text: "Agenda completa", URL: "https://example.org/agenda"},
	}

	display.Header("Stream states")
	for _, s := range []stream.State{stream.Idle, stream.Sending, stream.Streaming, stream.Retrying, stream.Succeeded, stream.Failed} {
		fmt.Printf("  %s\n", display.StateLabel(s))
	}

	display.Header("Reply")
	display.Message(msg)
	fmt.Println()
}
