package generate

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client streams chat completions from an OpenAI-compatible API.
type Client struct {
	model       string
	maxTokens   int
	temperature float32
	stop        []string
	api         *openai.Client
}

// NewClient creates a client for the given endpoint.
func NewClient(baseURL, apiKey, model string, maxTokens int, temperature float64, stop []string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	return &Client{
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		stop:        stop,
		api:         openai.NewClientWithConfig(cfg),
	}
}

// Model returns the generation model name.
func (c *Client) Model() string { return c.model }

// Stream sends the prompt and yields content deltas as they arrive.
func (c *Client) Stream(ctx context.Context, systemPrompt, userMessage string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userMessage},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Stop:        c.stop,
			Stream:      true,
		})
		if err != nil {
			yield("", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}
