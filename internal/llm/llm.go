// Package llm adapts OpenAI-compatible chat completion backends to the
// provider interfaces used by the generation and evaluation pipelines.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/assessor/internal/apperr"
)

// Provider turns a prompt into raw response text. It never inspects the
// shape of the text it returns.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentProvider additionally accepts the original binary document.
type DocumentProvider interface {
	Provider
	GenerateFromDocument(ctx context.Context, payload []byte, mediaType, prompt string) (string, error)
}

// Options configures a Client.
type Options struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Logger      *slog.Logger
}

// Client wraps an OpenAI-compatible API client. Every request asks for a
// JSON object response. Calls are never retried.
type Client struct {
	api         *openai.Client
	name        string
	model       string
	temperature float32
	log         *slog.Logger
}

var (
	_ Provider         = (*Client)(nil)
	_ DocumentProvider = (*Client)(nil)
)

// New creates a new LLM client.
func New(opts Options) *Client {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = opts.Model
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		name:        name,
		model:       opts.Model,
		temperature: opts.Temperature,
		log:         log.With("provider", name),
	}
}

// Name returns the label used in logs and in the modelUsed tag.
func (c *Client) Name() string { return c.name }

// Generate sends a text-only prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}

// GenerateFromDocument sends the prompt together with the document encoded
// as a data URL content part.
func (c *Client) GenerateFromDocument(ctx context.Context, payload []byte, mediaType, prompt string) (string, error) {
	if len(payload) == 0 {
		return "", apperr.Provider(c.name+": empty document payload", nil)
	}
	if mediaType == "" {
		mediaType = "application/pdf"
	}
	return c.complete(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: DataURL(mediaType, payload),
				},
			},
		},
	})
}

// Ping lists the backend's models to verify the endpoint and key.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return apperr.Provider(c.name+": list models", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{msg},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		c.log.Warn("LLM API call failed", "model", c.model, "status", statusOf(err), "error", err)
		return "", apperr.Provider(c.name+": LLM API call", err)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.Provider(c.name+": LLM returned no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	if raw == "" {
		return "", apperr.Provider(c.name+": LLM returned empty content", nil)
	}
	c.log.Debug("LLM response", "raw", raw)
	return raw, nil
}

// DataURL encodes payload as a base64 data URL.
func DataURL(mediaType string, payload []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
