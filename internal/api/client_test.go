package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"teca-cli/internal/config"
	"teca-cli/internal/grammar"
	"teca-cli/internal/places"
	"teca-cli/internal/stream"
)

func TestSetHeaders(t *testing.T) {
	t.Run("with token and body", func(t *testing.T) {
		c := &Client{token: "my-jwt-token"}
		req, _ := http.NewRequest("POST", "http://example.com", nil)
		c.setHeaders(req, true)

		if got := req.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if got := req.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want %q", got, "application/json")
		}
		if got := req.Header.Get("Authorization"); got != "Bearer my-jwt-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer my-jwt-token")
		}
	})

	t.Run("without body or token", func(t *testing.T) {
		c := &Client{}
		req, _ := http.NewRequest("GET", "http://example.com", nil)
		c.setHeaders(req, false)

		if got := req.Header.Get("Content-Type"); got != "" {
			t.Errorf("Content-Type = %q, want empty", got)
		}
		if got := req.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}
	})
}

func TestDoJSON(t *testing.T) {
	t.Run("GET request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "GET" {
				t.Errorf("method = %s, want GET", r.Method)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, `{"name":"test"}`)
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client(), token: "test-token"}
		var result struct{ Name string }
		err := c.doJSON(context.Background(), "GET", "/test", nil, &result)
		if err != nil {
			t.Fatalf("doJSON() error = %v", err)
		}
		if result.Name != "test" {
			t.Errorf("result.Name = %q, want %q", result.Name, "test")
		}
	})

	t.Run("POST request with body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var req struct{ Value string }
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
			}
			if req.Value != "hello" {
				t.Errorf("request body Value = %q, want %q", req.Value, "hello")
			}
			_, _ = fmt.Fprint(w, `{"ok":true}`)
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client(), token: "tok"}
		var result struct{ Ok bool }
		err := c.doJSON(context.Background(), "POST", "/test", struct{ Value string }{"hello"}, &result)
		if err != nil {
			t.Fatalf("doJSON() error = %v", err)
		}
		if !result.Ok {
			t.Error("result.Ok = false, want true")
		}
	})

	t.Run("error response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = fmt.Fprint(w, "internal error")
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
		err := c.doJSON(context.Background(), "GET", "/test", nil, nil)
		if err == nil {
			t.Fatal("doJSON() expected error for 500 response")
		}
		if !strings.Contains(err.Error(), "500") {
			t.Errorf("error = %q, expected to contain status code 500", err.Error())
		}
	})
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		Server: "http://localhost:3001/",
		Token:  "my-token",
		City:   "Villajoyosa",
	}
	c := NewClient(cfg)
	if c.baseURL != "http://localhost:3001" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.token != "my-token" || c.city != "Villajoyosa" {
		t.Errorf("client = %+v", c)
	}
}

func TestOpenStream(t *testing.T) {
	t.Run("streams the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/chat" || r.Method != "POST" {
				t.Errorf("%s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Accept"); got != "text/event-stream" {
				t.Errorf("Accept = %q", got)
			}
			var req ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			if req.Message != "hola" || req.ConversationID != "c1" || req.City != "Villajoyosa" || !req.Stream {
				t.Errorf("request = %+v", req)
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = fmt.Fprint(w, "data: {\"text\":\"Hola\"}\n\ndata: [DONE]\n\n")
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client(), city: "Villajoyosa"}
		body, err := c.OpenStream(context.Background(), stream.Request{ConversationID: "c1", Prompt: "hola"})
		if err != nil {
			t.Fatalf("OpenStream() error = %v", err)
		}
		defer body.Close()
		data, _ := io.ReadAll(body)
		if !strings.Contains(string(data), "[DONE]") {
			t.Errorf("body = %q", data)
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, "overloaded")
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
		_, err := c.OpenStream(context.Background(), stream.Request{Prompt: "hola"})
		if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "overloaded") {
			t.Errorf("err = %v", err)
		}
	})
}

// The client plugged into the ingestor retries a failing backend and then
// succeeds.
func TestOpenStreamWithIngestor(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"text-delta\",\"delta\":\"Hola \"}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"text-delta\",\"delta\":\"vecino\"}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
	in := stream.New(c, stream.Options{MaxRetries: 2, Timeout: 5 * time.Second, RetryDelay: time.Millisecond})
	text, err := in.Run(context.Background(), stream.Request{Prompt: "hola"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if text != "Hola vecino" || calls != 2 {
		t.Errorf("text = %q after %d calls", text, calls)
	}
}

// A server that accepts the request but never answers it is abandoned by the
// inactivity watchdog on every attempt.
func TestOpenStreamUnresponsiveServer(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
	in := stream.New(c, stream.Options{MaxRetries: 1, Timeout: 100 * time.Millisecond, RetryDelay: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := in.Run(context.Background(), stream.Request{Prompt: "hola"}, nil)
		done <- err
	}()

	select {
	case err := <-done:
		var ex *stream.ExhaustedError
		if !errors.As(err, &ex) || ex.Attempts != 2 {
			t.Fatalf("Run() error = %v, want ExhaustedError after 2 attempts", err)
		}
		if !errors.Is(err, stream.ErrInactivity) {
			t.Errorf("Run() error = %v, want ErrInactivity", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() still blocked on a server that never answers")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestFetchGrammar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/config/markers" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = fmt.Fprint(w, `{"markers":{"event":{"start":"<<EV>>","end":"<</EV>>"}},"max_initial_events":8}`)
	}))
	defer srv.Close()

	c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
	g := grammar.Load(context.Background(), nil, c)
	if g.Event.Start != "<<EV>>" || g.MaxInitialEvents != 8 {
		t.Errorf("grammar = %+v", g)
	}
	if g.Place != grammar.Default().Place {
		t.Error("unspecified markers should keep defaults")
	}
}

func TestLookupPlace(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var q places.Query
			if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
				t.Errorf("decode: %v", err)
			}
			if q.SearchQuery != "Vilamuseu Villajoyosa" {
				t.Errorf("query = %+v", q)
			}
			_, _ = fmt.Fprint(w, `{"place":{"place_id":"ChIJ1","address":"C/ Barranquet 1","rating":4.6}}`)
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
		d, err := c.LookupPlace(context.Background(), places.Query{Name: "Vilamuseu", SearchQuery: "Vilamuseu Villajoyosa"})
		if err != nil {
			t.Fatalf("LookupPlace() error = %v", err)
		}
		if d.PlaceID != "ChIJ1" || d.Address != "C/ Barranquet 1" || d.Rating != 4.6 {
			t.Errorf("details = %+v", d)
		}
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		c := &Client{baseURL: srv.URL, httpClient: srv.Client()}
		if _, err := c.LookupPlace(context.Background(), places.Query{Name: "X"}); err == nil {
			t.Error("expected error")
		}
	})
}
