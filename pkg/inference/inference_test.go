package inference

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	mock := NewMock()

	// Test Chat
	resp, err := mock.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("Hello")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content == "" {
		t.Error("Expected content in response")
	}

	// Test Vision
	visionResp, err := mock.Vision(ctx, &VisionRequest{
		Image:  []byte{0xff, 0xd8},
		Prompt: "What do you see?",
	})
	if err != nil {
		t.Fatalf("Vision failed: %v", err)
	}
	if visionResp.Content == "" {
		t.Error("Expected content in vision response")
	}

	// Test call tracking
	if mock.CallCount("Chat") != 1 {
		t.Errorf("Expected 1 Chat call, got %d", mock.CallCount("Chat"))
	}
	if mock.CallCount("Vision") != 1 {
		t.Errorf("Expected 1 Vision call, got %d", mock.CallCount("Vision"))
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(calls))
	}
	for _, c := range calls {
		if c.End.Before(c.Start) {
			t.Errorf("%s: end before start", c.Method)
		}
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("Expected 0 calls after reset")
	}
}

func TestMockDetectsOverlap(t *testing.T) {
	mock := NewMock()
	release := make(chan struct{})
	mock.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		<-release
		return &ChatResponse{Message: NewAssistantMessage("ok")}, nil
	}

	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			mock.Chat(context.Background(), &ChatRequest{})
			done <- struct{}{}
		}()
	}

	// Wait until both calls are in flight.
	deadline := time.Now().Add(2 * time.Second)
	for mock.CallCount("Chat") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	<-done
	<-done

	if mock.Overlaps() != 1 {
		t.Errorf("Overlaps() = %d, want 1", mock.Overlaps())
	}
}

func TestMockWithError(t *testing.T) {
	ctx := context.Background()
	testErr := errors.New("test error")
	mock := WithError(testErr)

	_, err := mock.Chat(ctx, &ChatRequest{})
	if !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}

	_, err = mock.Vision(ctx, &VisionRequest{})
	if !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}

	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("Expected test error from Health, got: %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Apply(
		WithBaseURL("http://10.0.0.5:11434"),
		WithModel("qwen2.5:0.5b"),
		WithVisionModel("moondream"),
		WithTimeout(10*time.Second),
	)

	if cfg.BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("Expected custom URL, got %s", cfg.BaseURL)
	}
	if cfg.Model != "qwen2.5:0.5b" {
		t.Errorf("Expected qwen2.5:0.5b, got %s", cfg.Model)
	}
	if cfg.VisionModel != "moondream" {
		t.Errorf("Expected moondream, got %s", cfg.VisionModel)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected 10s, got %v", cfg.Timeout)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "http://localhost:11434" {
		t.Errorf("Expected local Ollama URL, got %s", cfg.BaseURL)
	}
	if cfg.Model != "" {
		t.Errorf("Expected model to be resolved later, got %s", cfg.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.BaseURL = ""
	if err := cfg.Validate(); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestOptionsMap(t *testing.T) {
	chat := ChatOptions().Map()
	want := map[string]any{
		"temperature": 0.7,
		"num_predict": 120,
		"num_ctx":     384,
		"num_keep":    48,
	}
	for k, v := range want {
		if chat[k] != v {
			t.Errorf("chat[%s] = %v, want %v", k, chat[k], v)
		}
	}
	if _, ok := chat["stop"]; ok {
		t.Error("chat options should not carry stop sequences")
	}

	vision := VisionOptions().Map()
	if vision["temperature"] != 0.2 || vision["num_predict"] != 100 {
		t.Errorf("unexpected vision options: %v", vision)
	}
	if _, ok := vision["num_keep"]; ok {
		t.Error("vision options should not set num_keep")
	}
	stop, ok := vision["stop"].([]string)
	if !ok || len(stop) != 1 || stop[0] != "Question:" {
		t.Errorf("vision stop = %v", vision["stop"])
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "model not found", Provider: "test"}
	if !err.IsNotFound() {
		t.Error("Expected IsNotFound() to be true")
	}
	if err.IsServerError() {
		t.Error("Expected IsServerError() to be false for 404")
	}

	err = &APIError{StatusCode: 500, Message: "server error", Provider: "test"}
	if !err.IsServerError() {
		t.Error("Expected IsServerError() to be true")
	}
	if err.Error() == "" {
		t.Error("Expected non-empty error string")
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	err := WrapError("ollama", ErrEmptyResponse)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Error("Expected wrapped error to match ErrEmptyResponse")
	}
	if WrapError("ollama", nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestMessageHelpers(t *testing.T) {
	sys := NewSystemMessage("You are B-9")
	if sys.Role != RoleSystem {
		t.Errorf("Expected system role, got %s", sys.Role)
	}

	user := NewUserMessage("Hello")
	if user.Role != RoleUser || user.Content != "Hello" {
		t.Errorf("Unexpected user message: %+v", user)
	}

	asst := NewAssistantMessage("Affirmative.")
	if asst.Role != RoleAssistant {
		t.Errorf("Expected assistant role, got %s", asst.Role)
	}
}
