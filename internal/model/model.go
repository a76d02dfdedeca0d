// Package model binds an AWS session to Claude on Bedrock with fixed generation settings.
package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cchalm/bedrock-chat/internal/ai"
	"github.com/cchalm/bedrock-chat/internal/apperr"
	"github.com/cchalm/bedrock-chat/internal/awsauth"
)

const (
	DefaultModelID          = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultMaxTokens        = 300
	DefaultTemperature      = 0.9
	DefaultAnthropicVersion = "bedrock-2023-05-31"
)

// Settings are the generation parameters sent with every request
type Settings struct {
	ModelID          string
	MaxTokens        int64
	Temperature      float64
	AnthropicVersion string
}

func DefaultSettings() Settings {
	return Settings{
		ModelID:          DefaultModelID,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		AnthropicVersion: DefaultAnthropicVersion,
	}
}

func (s Settings) Validate() error {
	if s.ModelID == "" {
		return fmt.Errorf("model ID is empty")
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", s.MaxTokens)
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", s.Temperature)
	}
	if s.AnthropicVersion == "" {
		return fmt.Errorf("anthropic version is empty")
	}
	return nil
}

type options struct {
	httpClient   *http.Client
	sender       ai.MessageSender
	tracer       trace.Tracer
	verifyAccess bool
}

type Option func(*options)

// WithHTTPClient sets the HTTP client used to reach Bedrock
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSender replaces the Bedrock-backed sender, e.g. with a fake in tests
func WithSender(s ai.MessageSender) Option {
	return func(o *options) { o.sender = s }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithAccessCheck makes New send a one-token request to confirm the account is entitled to the model
func WithAccessCheck() Option {
	return func(o *options) { o.verifyAccess = true }
}

// ChatModel is the configured handle through which prompts are sent to the model
type ChatModel struct {
	sender   ai.MessageSender
	settings Settings
	tracer   trace.Tracer
}

// New creates a chat model for the session. Every returned error is an *apperr.Error.
func New(ctx context.Context, sess awsauth.Session, settings Settings, opts ...Option) (*ChatModel, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}

	if err := settings.Validate(); err != nil {
		return nil, apperr.New(apperr.KindModelInitialization, apperr.HintModelInitialization,
			fmt.Errorf("invalid model settings: %w", err))
	}

	sender := o.sender
	if sender == nil {
		clientOpts := []option.RequestOption{
			bedrock.WithConfig(sess.Config),
			option.WithMaxRetries(0),
		}
		if o.httpClient != nil {
			clientOpts = append(clientOpts, option.WithHTTPClient(o.httpClient))
		}
		sender = ai.NewStreamingMessageSender(anthropic.NewClient(clientOpts...))
	}

	m := &ChatModel{
		sender:   sender,
		settings: settings,
		tracer:   o.tracer,
	}

	if o.verifyAccess {
		if err := m.checkAccess(ctx); err != nil {
			return nil, err
		}
	}

	log.Printf("Initialized model %s in %s (max tokens %d, temperature %g)",
		settings.ModelID, sess.Region, settings.MaxTokens, settings.Temperature)
	return m, nil
}

func (m *ChatModel) checkAccess(ctx context.Context) error {
	params := m.params(ai.Prompt{Turns: []ai.Turn{ai.UserTurn("ping")}})
	params.MaxTokens = 1

	_, err := m.sender.SendMessage(ctx, params, option.WithJSONSet("anthropic_version", m.settings.AnthropicVersion))
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized) {
		return apperr.New(apperr.KindModelAccessDenied, apperr.HintModelAccessDenied,
			fmt.Errorf("access check for %s failed: %w", m.settings.ModelID, err))
	}
	return apperr.New(apperr.KindModelInitialization, apperr.HintModelInitialization,
		fmt.Errorf("access check for %s failed: %w", m.settings.ModelID, err))
}

// Invoke sends the prompt and blocks until the full response text is available
func (m *ChatModel) Invoke(ctx context.Context, prompt ai.Prompt) (ai.Reply, error) {
	if err := prompt.Validate(); err != nil {
		return ai.Reply{}, fmt.Errorf("invalid prompt: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "bedrock.invoke", trace.WithAttributes(
		attribute.String("gen_ai.request.model", m.settings.ModelID),
		attribute.Int64("gen_ai.request.max_tokens", m.settings.MaxTokens),
		attribute.Float64("gen_ai.request.temperature", m.settings.Temperature),
		attribute.Int("chat.prompt.turns", len(prompt.Turns)),
	))
	defer span.End()

	response, err := m.sender.SendMessage(ctx, m.params(prompt),
		option.WithJSONSet("anthropic_version", m.settings.AnthropicVersion))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return ai.Reply{}, fmt.Errorf("failed to send message: %w", err)
	}

	reply := ai.Reply{
		Text:       responseText(response),
		StopReason: string(response.StopReason),
		Usage: ai.Usage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", reply.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", reply.Usage.OutputTokens),
		attribute.String("gen_ai.response.stop_reason", reply.StopReason),
	)
	log.Printf("Token usage - Input: %d, Output: %d, Stop reason: %s",
		reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.StopReason)

	if reply.Text == "" {
		span.SetStatus(codes.Error, "empty response")
		return ai.Reply{}, fmt.Errorf("response contained no text (stop reason '%s')", reply.StopReason)
	}
	return reply, nil
}

func (m *ChatModel) params(prompt ai.Prompt) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(prompt.Turns))
	for _, turn := range prompt.Turns {
		switch turn.Role {
		case ai.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		case ai.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.settings.ModelID),
		MaxTokens:   m.settings.MaxTokens,
		Temperature: anthropic.Float(m.settings.Temperature),
		Messages:    messages,
	}
	if prompt.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.SystemPrompt}}
	}
	return params
}

func responseText(msg anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
