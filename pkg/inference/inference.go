// Package inference provides a narrow interface to the locally hosted model.
//
// The unit runs a single Ollama instance on one accelerator. Provider hides
// the wire protocol behind chat, vision and liveness calls; callers that
// need serialization (see package dispatch) layer it on top.
//
// Example usage:
//
//	client, _ := inference.NewOllama(
//	    inference.WithBaseURL("http://localhost:11434"),
//	    inference.WithModel("qwen2.5:0.5b"),
//	    inference.WithVisionModel("moondream"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{
//	        inference.NewUserMessage("Status?"),
//	    },
//	    Options: inference.ChatOptions(),
//	})
package inference

import "context"

// Provider is the inference interface used by the dispatcher.
type Provider interface {
	// Chat generates a reply from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Vision describes a JPEG image given a text prompt.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Health checks that the backend answers its model listing endpoint.
	Health(ctx context.Context) error

	// Models lists the installed model names.
	Models(ctx context.Context) ([]string, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Options are per-request sampling parameters.
type Options struct {
	Temperature   float64
	MaxTokens     int // num_predict
	ContextWindow int // num_ctx
	KeepTokens    int // num_keep
	Stop          []string
}

// ChatOptions returns the sampling parameters used for conversation.
func ChatOptions() Options {
	return Options{
		Temperature:   0.7,
		MaxTokens:     120,
		ContextWindow: 384,
		KeepTokens:    48,
	}
}

// VisionOptions returns the sampling parameters used for scene description.
func VisionOptions() Options {
	return Options{
		Temperature:   0.2,
		MaxTokens:     100,
		ContextWindow: 384,
		Stop:          []string{"Question:"},
	}
}

// Map renders the options in the backend's option vocabulary.
// Zero values are omitted so the model defaults apply.
func (o Options) Map() map[string]any {
	m := map[string]any{"temperature": o.Temperature}
	if o.MaxTokens > 0 {
		m["num_predict"] = o.MaxTokens
	}
	if o.ContextWindow > 0 {
		m["num_ctx"] = o.ContextWindow
	}
	if o.KeepTokens > 0 {
		m["num_keep"] = o.KeepTokens
	}
	if len(o.Stop) > 0 {
		m["stop"] = o.Stop
	}
	return m
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the full prompt, system persona first.
	Messages []Message

	// Model overrides the default model.
	Model string

	// Options controls sampling.
	Options Options
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's reply.
	Message Message

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// VisionRequest for image description.
type VisionRequest struct {
	// Image is a JPEG-encoded frame.
	Image []byte

	// Prompt describing what to do with the image.
	Prompt string

	// Model overrides the default vision model.
	Model string

	// Options controls sampling.
	Options Options
}

// VisionResponse from image description.
type VisionResponse struct {
	// Content is the natural language response.
	Content string

	// Model used for analysis.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}
