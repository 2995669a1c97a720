// Package main provides the codecoach-mockserver CLI binary.
// It starts a mock learning-platform backend implementing the chat,
// scoring, execution and submission endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/codecoach/internal/mockserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:3000", "HTTP server address")
	streaming := flag.Bool("streaming", true, "serve chat replies over SSE instead of single-shot JSON")
	flag.Parse()

	behavior := mockserver.DefaultBehavior()
	behavior.Streaming = *streaming

	server := mockserver.New(behavior)
	if err := server.StartOn(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock backend listening on %s\n", server.URL())
	fmt.Println("Endpoints: /api/ai/chat /api/ai/check /api/execute /api/scores/submit")
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Stop(ctx)
	fmt.Println("Mock server stopped")
}
