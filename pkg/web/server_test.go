package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-b9/internal/log"
	"github.com/teslashibe/go-b9/pkg/hub"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/journal"
)

type fakeBackend struct {
	mu         sync.Mutex
	asked      []string
	scans      int
	ptt        int
	journalErr error
}

func (f *fakeBackend) Status(ctx context.Context) any {
	return map[string]any{"queue_depth": 1, "voice_state": "wake_listening"}
}

func (f *fakeBackend) History() []inference.Message {
	return []inference.Message{
		inference.NewUserMessage("hello"),
		inference.NewAssistantMessage("Greetings."),
	}
}

func (f *fakeBackend) Recoveries(ctx context.Context, limit int) ([]journal.Entry, error) {
	if f.journalErr != nil {
		return nil, f.journalErr
	}
	return []journal.Entry{{ID: 1, Source: "watchdog", Kind: "restart_succeeded", OK: true}}[:min(limit, 1)], nil
}

func (f *fakeBackend) Ask(ctx context.Context, text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, text)
	return "Affirmative."
}

func (f *fakeBackend) Scan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
}

func (f *fakeBackend) PushToTalk() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ptt++
}

func newTestServer(t *testing.T) (*Server, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	srv, err := NewServer(DefaultConfig(), backend, hub.New("events", log.Discard()), log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return srv, backend
}

func do(t *testing.T, srv *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, 2000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, srv, http.MethodGet, "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got["voice_state"] != "wake_listening" {
		t.Errorf("body = %s", body)
	}
}

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	_, body := do(t, srv, http.MethodGet, "/api/history", "")
	var got []inference.Message
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Role != inference.RoleUser || got[1].Content != "Greetings." {
		t.Errorf("history = %+v", got)
	}
}

func TestRecoveries(t *testing.T) {
	srv, backend := newTestServer(t)

	_, body := do(t, srv, http.MethodGet, "/api/recoveries?limit=5", "")
	var got []journal.Entry
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind != "restart_succeeded" {
		t.Errorf("entries = %+v", got)
	}

	resp, _ := do(t, srv, http.MethodGet, "/api/recoveries?limit=0", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d", resp.StatusCode)
	}

	backend.journalErr = errors.New("disk full")
	resp, _ = do(t, srv, http.MethodGet, "/api/recoveries", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("journal error status = %d", resp.StatusCode)
	}
}

func TestAsk(t *testing.T) {
	srv, backend := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/ask", `{"text":"  what is your purpose  "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var got AskResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Reply != "Affirmative." || got.Text != "what is your purpose" {
		t.Errorf("reply = %+v", got)
	}
	if len(backend.asked) != 1 || backend.asked[0] != "what is your purpose" {
		t.Errorf("asked = %v", backend.asked)
	}

	for _, bad := range []string{`{"text":"   "}`, `not json`} {
		resp, _ := do(t, srv, http.MethodPost, "/api/ask", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q status = %d", bad, resp.StatusCode)
		}
	}
}

func TestTriggers(t *testing.T) {
	srv, backend := newTestServer(t)

	if resp, _ := do(t, srv, http.MethodPost, "/api/scan", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("scan status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/ptt", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("ptt status = %d", resp.StatusCode)
	}
	if backend.scans != 1 || backend.ptt != 1 {
		t.Errorf("scans = %d, ptt = %d", backend.scans, backend.ptt)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := do(t, srv, http.MethodGet, "/ws/events", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestEventsStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub().Run(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Hub().Publish("recovery", map[string]string{"kind": "restart_started"}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env struct {
		Topic string            `json:"topic"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Topic != "recovery" || env.Data["kind"] != "restart_started" {
		t.Errorf("event = %s", data)
	}
}

func TestNewServerRequiresDeps(t *testing.T) {
	if _, err := NewServer(DefaultConfig(), nil, nil, nil); err == nil {
		t.Error("expected error")
	}
}
