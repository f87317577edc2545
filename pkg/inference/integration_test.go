//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests against a running Ollama.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestOllamaIntegration(t *testing.T) {
	baseURL := os.Getenv("B9_OLLAMA_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	client, err := NewOllama(WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	// Quick health check to see if Ollama is running
	if err := client.Health(ctx); err != nil {
		t.Skip("Ollama not running: " + err.Error())
	}
	if err := client.ResolveModels(ctx); err != nil {
		t.Skip("no chat model installed: " + err.Error())
	}

	t.Run("Chat", func(t *testing.T) {
		resp, err := client.Chat(ctx, &ChatRequest{
			Messages: []Message{
				NewUserMessage("Say 'affirmative' and nothing else."),
			},
			Options: ChatOptions(),
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		t.Logf("Ollama response (%s, %dms): %s", resp.Model, resp.LatencyMs, resp.Message.Content)
	})
}
