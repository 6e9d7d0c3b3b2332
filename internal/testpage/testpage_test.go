package testpage

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func get(t *testing.T, url string, header http.Header) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestStaticPage(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{ReadyText: "Welcome back"}))
	defer srv.Close()

	status, body := get(t, srv.URL+"/", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "<h1>Welcome back</h1>") {
		t.Errorf("ready text missing from page:\n%s", body)
	}

	status, _ = get(t, srv.URL+"/missing", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", status)
	}
}

func TestStaticPageDefaultText(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{}))
	defer srv.Close()

	_, body := get(t, srv.URL+"/", nil)
	if !strings.Contains(body, DefaultReadyText) {
		t.Errorf("default ready text missing:\n%s", body)
	}
}

func TestDelayQueryOverridesServerDelay(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{ServerDelay: time.Minute}))
	defer srv.Close()

	start := time.Now()
	get(t, srv.URL+"/?delay=60", nil)
	elapsed := time.Since(start)
	if elapsed < 60*time.Millisecond {
		t.Errorf("response after %s, want at least 60ms", elapsed)
	}
	if elapsed > 10*time.Second {
		t.Errorf("server delay not overridden, took %s", elapsed)
	}
}

func TestDynamicPageUsesWebSocket(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{}))
	defer srv.Close()

	_, body := get(t, srv.URL+"/dynamic", nil)
	if !strings.Contains(body, `"/ws"`) {
		t.Errorf("dynamic page does not connect to /ws:\n%s", body)
	}
	if strings.Contains(body, DefaultReadyText) {
		t.Errorf("dynamic page must not contain the ready text before rendering")
	}
}

func TestWebSocketDeliversReadyText(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{ReadyText: "Dashboard ready", RenderDelay: 30 * time.Millisecond}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	start := time.Now()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Text != "Dashboard ready" {
		t.Errorf("message text = %q", msg.Text)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("message arrived after %s, want at least the render delay", elapsed)
	}
}

func TestHeadersEcho(t *testing.T) {
	srv := httptest.NewServer(Handler(Options{}))
	defer srv.Close()

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	_, body := get(t, srv.URL+"/headers", http.Header{"Traceparent": {traceparent}})

	var headers map[string]string
	if err := json.Unmarshal([]byte(body), &headers); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, body)
	}
	if headers["Traceparent"] != traceparent {
		t.Errorf("traceparent = %q, want %q", headers["Traceparent"], traceparent)
	}
}
