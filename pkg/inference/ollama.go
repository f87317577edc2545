package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/teslashibe/go-b9/internal/httpc"
)

const providerName = "ollama"

// Ollama implements Provider against a local Ollama server.
type Ollama struct {
	config *Config
	client *api.Client
	probe  *api.Client
	logger *slog.Logger

	mu          sync.RWMutex
	model       string
	visionModel string
}

// NewOllama creates an Ollama-backed provider.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, WrapError(providerName, fmt.Errorf("parse base url: %w", err))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ollama{
		config:      cfg,
		client:      api.NewClient(base, httpc.NewClient(cfg.Timeout)),
		probe:       api.NewClient(base, httpc.NewProbeClient()),
		logger:      logger.With("component", "inference", "provider", providerName),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
	}, nil
}

// Chat sends a non-streaming chat request.
func (o *Ollama) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = o.ChatModel()
	}
	if model == "" {
		return nil, WrapError(providerName, ErrNoModel)
	}

	messages := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  req.Options.Map(),
	}

	start := time.Now()
	var content strings.Builder
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, o.wrap(err)
	}

	text := strings.TrimSpace(content.String())
	latency := time.Since(start).Milliseconds()
	o.logger.Debug("chat complete", "model", model, "messages", len(messages), "latency_ms", latency)
	if text == "" {
		return nil, WrapError(providerName, ErrEmptyResponse)
	}

	return &ChatResponse{
		Message:   NewAssistantMessage(text),
		Model:     model,
		LatencyMs: latency,
	}, nil
}

// Vision sends a non-streaming generate request with one image attached.
func (o *Ollama) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	model := req.Model
	if model == "" {
		model = o.VisionModel()
	}
	if model == "" {
		return nil, WrapError(providerName, ErrNoModel)
	}
	if len(req.Image) == 0 {
		return nil, WrapError(providerName, ErrNoImage)
	}

	stream := false
	genReq := &api.GenerateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Images:  []api.ImageData{req.Image},
		Stream:  &stream,
		Options: req.Options.Map(),
	}

	start := time.Now()
	var content strings.Builder
	err := o.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		content.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return nil, o.wrap(err)
	}

	text := strings.TrimSpace(content.String())
	latency := time.Since(start).Milliseconds()
	o.logger.Debug("vision complete", "model", model, "image_bytes", len(req.Image), "latency_ms", latency)
	if text == "" {
		return nil, WrapError(providerName, ErrEmptyResponse)
	}

	return &VisionResponse{
		Content:   text,
		Model:     model,
		LatencyMs: latency,
	}, nil
}

// Health lists models with a short timeout.
func (o *Ollama) Health(ctx context.Context) error {
	if _, err := o.probe.List(ctx); err != nil {
		return o.wrap(err)
	}
	return nil
}

// Models returns the installed model names.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	resp, err := o.probe.List(ctx)
	if err != nil {
		return nil, o.wrap(err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ResolveModels fills in any unset model from what is installed.
func (o *Ollama) ResolveModels(ctx context.Context) error {
	if o.ChatModel() != "" && o.VisionModel() != "" {
		return nil
	}
	installed, err := o.Models(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.visionModel == "" {
		o.visionModel = PickModel(installed, VisionPreferences)
	}
	if o.model == "" {
		o.model = PickModel(installed, ChatPreferences)
	}
	o.logger.Info("models resolved", "chat", o.model, "vision", o.visionModel, "installed", len(installed))
	if o.model == "" {
		return WrapError(providerName, ErrNoModel)
	}
	return nil
}

// ChatModel returns the current chat model name.
func (o *Ollama) ChatModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.model
}

// VisionModel returns the current vision model name.
func (o *Ollama) VisionModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.visionModel
}

// Close releases idle connections. The api client owns no other resources.
func (o *Ollama) Close() error {
	return nil
}

func (o *Ollama) wrap(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return &APIError{StatusCode: se.StatusCode, Message: msg, Provider: providerName}
	}
	return WrapError(providerName, err)
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
