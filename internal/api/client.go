package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"teca-cli/internal/config"
	"teca-cli/internal/grammar"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
)

const clientIdentifier = "teca-cli"

type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; streams are bounded by the
	// ingestor's inactivity watchdog.
	streamClient *http.Client
	token        string
	city         string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Server, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
		token:        cfg.Token,
		city:         cfg.City,
	}
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client", clientIdentifier)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// --- Chat ---

type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	City           string `json:"city,omitempty"`
	Stream         bool   `json:"stream"`
}

// OpenStream posts one user turn and returns the event-stream body. The
// caller closes it.
func (c *Client) OpenStream(ctx context.Context, r stream.Request) (io.ReadCloser, error) {
	city := r.City
	if city == "" {
		city = c.city
	}
	body, err := json.Marshal(ChatRequest{
		ConversationID: r.ConversationID,
		Message:        r.Prompt,
		City:           city,
		Stream:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, true)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := c.streamClient
	if client == nil {
		client = c.httpClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp.Body, nil
}

// --- Marker configuration ---

// FetchGrammar reads the backend's marker configuration.
func (c *Client) FetchGrammar(ctx context.Context) (*grammar.Remote, error) {
	var resp grammar.Remote
	if err := c.doJSON(ctx, http.MethodGet, "/v1/config/markers", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Places ---

type PlaceLookupResponse struct {
	Place *places.Details `json:"place,omitempty"`
	Error string          `json:"error,omitempty"`
}

// LookupPlace resolves a place through the backend's geodata proxy.
func (c *Client) LookupPlace(ctx context.Context, q places.Query) (*places.Details, error) {
	var resp PlaceLookupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/places/lookup", q, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.Place == nil {
		return nil, fmt.Errorf("place %q not found", q.Name)
	}
	return resp.Place, nil
}

// --- Generic JSON helper ---

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil && method != http.MethodGet {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, bodyReader != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
