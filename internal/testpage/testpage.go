// Package testpage serves target pages for trying pagefire against a local
// server. The dynamic page renders its readiness text only after a message
// arrives over a websocket, the way client-rendered applications do.
package testpage

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadyText is rendered by every page when Options.ReadyText is empty.
const DefaultReadyText = "Page ready"

// Options configure the served pages.
type Options struct {
	ReadyText   string        // text that marks the page as loaded
	ServerDelay time.Duration // delay before any page response, overridable with ?delay=<ms>
	RenderDelay time.Duration // delay before the websocket delivers the ready text
	Logger      *slog.Logger
}

// Message is the websocket payload delivered to the dynamic page.
type Message struct {
	Text string `json:"text"`
}

type server struct {
	opts     Options
	upgrader websocket.Upgrader
}

// Handler returns the page routes:
//
//	/          static page containing the ready text
//	/dynamic   page that fetches the ready text over /ws
//	/ws        websocket delivering Message after RenderDelay
//	/headers   JSON echo of the request headers, e.g. traceparent
func Handler(opts Options) http.Handler {
	if opts.ReadyText == "" {
		opts.ReadyText = DefaultReadyText
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &server{
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatic)
	mux.HandleFunc("/dynamic", s.handleDynamic)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/headers", s.handleHeaders)
	return mux
}

var staticPage = template.Must(template.New("static").Parse(`<!DOCTYPE html>
<html><head><title>pagefire test page</title></head>
<body><h1>{{.}}</h1></body></html>
`))

var dynamicPage = template.Must(template.New("dynamic").Parse(`<!DOCTYPE html>
<html><head><title>pagefire dynamic test page</title></head>
<body>
<div id="status">loading</div>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function (ev) {
    const msg = JSON.parse(ev.data);
    const el = document.createElement("span");
    el.textContent = msg.text;
    const status = document.getElementById("status");
    status.textContent = "";
    status.appendChild(el);
    ws.close();
};
</script>
</body></html>
`))

func (s *server) delay(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("delay"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return s.opts.ServerDelay
}

func (s *server) wait(r *http.Request) bool {
	d := s.delay(r)
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !s.wait(r) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := staticPage.Execute(w, s.opts.ReadyText); err != nil {
		s.opts.Logger.Warn("render static page", "error", err)
	}
}

func (s *server) handleDynamic(w http.ResponseWriter, r *http.Request) {
	if !s.wait(r) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dynamicPage.Execute(w, nil); err != nil {
		s.opts.Logger.Warn("render dynamic page", "error", err)
	}
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.opts.RenderDelay > 0 {
		select {
		case <-time.After(s.opts.RenderDelay):
		case <-r.Context().Done():
			return
		}
	}
	if err := conn.WriteJSON(Message{Text: s.opts.ReadyText}); err != nil {
		s.opts.Logger.Warn("websocket write failed", "error", err)
		return
	}
	// Wait for the page to close the socket.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(headers); err != nil {
		http.Error(w, fmt.Sprintf("encode headers: %v", err), http.StatusInternalServerError)
	}
}
