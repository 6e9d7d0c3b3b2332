// Command pageserver serves local target pages for pagefire runs, e.g.
//
//	go run ./scripts/testservers/pageserver -port 8080 -render-delay 300ms
//	pagefire 3 http://localhost:8080/dynamic 5 200 "Page ready"
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/torosent/pagefire/internal/testpage"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	readyText := flag.String("ready-text", testpage.DefaultReadyText, "Text rendered once the page is ready")
	serverDelay := flag.Duration("server-delay", 0, "Delay before every page response")
	renderDelay := flag.Duration("render-delay", 250*time.Millisecond, "Delay before /dynamic receives the ready text")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *port <= 0 {
		logger.Error("port must be > 0")
		os.Exit(1)
	}

	handler := testpage.Handler(testpage.Options{
		ReadyText:   *readyText,
		ServerDelay: *serverDelay,
		RenderDelay: *renderDelay,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("test page server listening", "addr", addr, "ready_text", *readyText)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
