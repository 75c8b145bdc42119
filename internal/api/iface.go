package api

import (
	"teca-cli/internal/grammar"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
)

// AssistantAPI is everything the client needs from the backend.
// *Client satisfies this interface. TUI and tests can use mock implementations.
type AssistantAPI interface {
	stream.Opener
	grammar.Source
	places.Lookup
}

var _ AssistantAPI = (*Client)(nil)
