package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/programs"
	"github.com/antibyte/retrocalc/pkg/session"
	"github.com/antibyte/retrocalc/pkg/shared"
)

type fakePrograms map[string]string

func (f fakePrograms) Get(_ context.Context, name string) (*programs.Program, error) {
	name, err := programs.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	src, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", programs.ErrNotFound, name)
	}
	return &programs.Program{Name: name, Source: src}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(session.NewManager(), fakePrograms{
		"KEYDEMO": `Disp "READY"`,
		"DOUBLE":  "Input \"N?\",N\nDisp N*2",
	})
	h.tickInterval = 5 * time.Millisecond
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return srv, h
}

func createSession(t *testing.T, srv *httptest.Server) sessionResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/session", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg shared.Message) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
}

// waitFor reads messages until match accepts one.
func waitFor(t *testing.T, conn *websocket.Conn, match func(shared.Message) bool) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no matching message: %v", err)
		}
		for _, part := range bytes.Split(data, newline) {
			var msg shared.Message
			if err := json.Unmarshal(part, &msg); err != nil {
				t.Fatalf("bad message %q: %v", part, err)
			}
			if match(msg) {
				return msg
			}
		}
	}
}

func frameWhere(pred func(lines []string, run string) bool) func(shared.Message) bool {
	return func(m shared.Message) bool {
		return m.Type == shared.MessageTypeFrame && m.Frame != nil && pred(m.Frame.Lines, m.Frame.Run)
	}
}

func ofType(t shared.MessageType) func(shared.Message) bool {
	return func(m shared.Message) bool { return m.Type == t }
}

func press(t *testing.T, conn *websocket.Conn, code, key string) {
	t.Helper()
	send(t, conn, shared.Message{Type: shared.MessageTypeKeyDown, Code: code, Key: key})
	send(t, conn, shared.Message{Type: shared.MessageTypeKeyUp, Code: code, Key: key})
}

func TestSessionStartsDefaultProgram(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)
	if !s.Success || s.SessionID == "" || s.Token == "" || s.Program != "KEYDEMO" {
		t.Fatalf("session response = %+v", s)
	}

	conn := dial(t, srv, s.Token)
	hello := waitFor(t, conn, ofType(shared.MessageTypeSession))
	if hello.SessionID != s.SessionID {
		t.Errorf("session id = %q, want %q", hello.SessionID, s.SessionID)
	}
	waitFor(t, conn, frameWhere(func(lines []string, run string) bool {
		return run == "done" && strings.TrimSpace(lines[0]) == "READY"
	}))
}

func TestRunSourceWithInput(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, createSession(t, srv).Token)

	send(t, conn, shared.Message{Type: shared.MessageTypeSource, Source: "Input \"N?\",N\nDisp N*2"})
	loaded := waitFor(t, conn, ofType(shared.MessageTypeLoaded))
	if loaded.Name != sourceProgramName {
		t.Errorf("loaded name = %q", loaded.Name)
	}
	waitFor(t, conn, frameWhere(func(_ []string, run string) bool { return run == "input" }))

	press(t, conn, "Digit4", "4")
	press(t, conn, "Enter", "")
	waitFor(t, conn, frameWhere(func(lines []string, run string) bool {
		return run == "done" && strings.TrimSpace(lines[1]) == "8"
	}))
}

func TestLoadStoredProgram(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, createSession(t, srv).Token)

	send(t, conn, shared.Message{Type: shared.MessageTypeLoad, Name: "double"})
	if m := waitFor(t, conn, ofType(shared.MessageTypeLoaded)); m.Name != "DOUBLE" {
		t.Errorf("loaded %q", m.Name)
	}
	waitFor(t, conn, frameWhere(func(lines []string, run string) bool {
		return run == "input" && strings.HasPrefix(lines[0], "N?")
	}))
}

func TestClientErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, createSession(t, srv).Token)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing program", `{"type":20,"name":"NOPE"}`, "not found"},
		{"invalid name", `{"type":20,"name":"9X"}`, "invalid"},
		{"compile error", `{"type":21,"source":"For(1,2,3)"}`, "SYNTAX ERROR"},
		{"unknown type", `{"type":99}`, "invalid message"},
		{"key without code", `{"type":16}`, "invalid message"},
		{"not json", `hello`, "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			m := waitFor(t, conn, ofType(shared.MessageTypeError))
			if !strings.Contains(m.Content, tt.want) {
				t.Errorf("error = %q, want it to contain %q", m.Content, tt.want)
			}
		})
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial with a bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v", resp)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	srv, h := newTestServer(t)
	token := createSession(t, srv).Token

	first := dial(t, srv, token)
	waitFor(t, first, ofType(shared.MessageTypeSession))
	second := dial(t, srv, token)
	waitFor(t, second, ofType(shared.MessageTypeSession))

	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	if n := h.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}
}

func TestEndSession(t *testing.T) {
	srv, h := newTestServer(t)
	s := createSession(t, srv)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if h.sessions.Count() != 0 {
		t.Errorf("session survived DELETE")
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + s.Token
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("dial after DELETE: err=%v resp=%v", err, resp)
	}
}

func TestSessionMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status %d", resp.StatusCode)
	}
}
