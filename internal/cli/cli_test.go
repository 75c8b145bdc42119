package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"teca-cli/internal/store"
)

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf, r)
		close(done)
	}()

	cmd := NewRootCmd("test")
	cmd.SetArgs(args)
	runErr := cmd.ExecuteContext(context.Background())

	w.Close()
	<-done
	r.Close()
	return buf.String(), runErr
}

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TECA_SERVER", "")
	return home
}

// backend serves one chat reply and nothing else.
func backend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
		fmt.Fprintf(w, "data: {\"type\":\"text-delta\",\"delta\":\"%s\"}\n\n", esc.Replace(reply))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func latestConversationID(t *testing.T, home string) string {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(home, ".teca", "teca.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	convs, err := st.Conversations(context.Background(), 1)
	if err != nil || len(convs) != 1 {
		t.Fatalf("conversations = %v, err = %v", convs, err)
	}
	return convs[0].ID
}

func TestVersion(t *testing.T) {
	withHome(t)
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "teca test" {
		t.Errorf("version = %q", out)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	withHome(t)

	if _, err := run(t, "config", "set", "city", "Benidorm"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := run(t, "config", "set", "stream.timeout", "45s"); err != nil {
		t.Fatalf("config set duration: %v", err)
	}

	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Benidorm", "stream.timeout", "45s"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	withHome(t)
	_, err := run(t, "config", "set", "colour", "blue")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigSetMasksToken(t *testing.T) {
	withHome(t)
	out, err := run(t, "config", "set", "token", "abcdefghijklmnop")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("token echoed in clear: %s", out)
	}
}

func TestConfigProfiles(t *testing.T) {
	withHome(t)
	if _, err := run(t, "--profile", "work", "config", "set", "city", "Altea"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "config", "profiles")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "work") {
		t.Errorf("profiles:\n%s", out)
	}
}

func TestAskRequiresServer(t *testing.T) {
	withHome(t)
	_, err := run(t, "ask", "hola")
	if err == nil || !strings.Contains(err.Error(), "server not set") {
		t.Errorf("err = %v", err)
	}
}

func TestAskShowAndExport(t *testing.T) {
	home := withHome(t)
	today := time.Now().Format("2006-01-02")
	srv := backend(t, "Esta semana:\n"+
		`[EVENT_CARD_START]{"title":"Feria de Artesanía","date":"`+today+`","location":"Plaza Mayor"}[EVENT_CARD_END]`)
	t.Setenv("TECA_SERVER", srv.URL)
	t.Setenv("TECA_STREAM_MAX_RETRIES", "0")

	out, err := run(t, "ask", "¿qué", "hay?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "Feria de Artesanía") || !strings.Contains(out, "semana") {
		t.Errorf("ask output:\n%s", out)
	}
	if strings.Contains(out, "EVENT_CARD") {
		t.Errorf("markers leaked into output:\n%s", out)
	}

	id := latestConversationID(t, home)

	out, err = run(t, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("history missing %s:\n%s", id, out)
	}

	out, err = run(t, "show", id[:10])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "¿qué hay?") || !strings.Contains(out, "Feria de Artesanía") {
		t.Errorf("show output:\n%s", out)
	}

	out, err = run(t, "export-ics", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "Feria de Artesan") {
		t.Errorf("export output:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "agenda.ics")
	if _, err := run(t, "export-ics", id, "-o", path); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(path); err != nil || !strings.Contains(string(data), "BEGIN:VEVENT") {
		t.Errorf("export file: %v\n%s", err, data)
	}

	out, err = run(t, "more")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No hay más eventos") {
		t.Errorf("more with nothing pending:\n%s", out)
	}
}

func TestAskReportsExhaustedRetries(t *testing.T) {
	withHome(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	t.Setenv("TECA_SERVER", srv.URL)
	t.Setenv("TECA_STREAM_MAX_RETRIES", "1")
	t.Setenv("TECA_STREAM_RETRY_DELAY", "1ms")

	_, err := run(t, "ask", "hola")
	if err == nil || !strings.Contains(err.Error(), "no answer after 2 attempts") {
		t.Errorf("err = %v", err)
	}
}

func TestExportUnknownConversation(t *testing.T) {
	withHome(t)
	if _, err := run(t, "export-ics", "nope"); err == nil {
		t.Error("expected an error for an unknown conversation")
	}
}

func TestFlattenConfig(t *testing.T) {
	got := flattenConfig(map[string]any{
		"server": "http://x",
		"log":    map[string]any{"level": "debug"},
		"tags":   []string{"a", "b"},
	}, "")
	want := [][2]string{{"log.level", "debug"}, {"server", "http://x"}, {"tags", "a, b"}}
	if len(got) != len(want) {
		t.Fatalf("flattenConfig = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flattenConfig[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
