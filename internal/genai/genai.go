// Package genai provides GenAI-assisted answers using the OpenAI API.
//
// The scripted conversation flow never depends on it; it backs the optional
// assist endpoint for free-form questions about the booking service.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generation defaults.
const (
	DefaultModel               = openai.ChatModelGPT4oMini
	DefaultTemperature         = 0.3
	DefaultMaxCompletionTokens = 400
)

const assistSystemPrompt = `You are a support assistant for a fiber internet
installation service. Answer briefly and factually. Appointment booking,
rescheduling and cancellation happen through the scripted chat flow; for
those, tell the customer to send /start.`

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter bridges the OpenAI SDK service to chatService.
type completionsAdapter struct {
	svc openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxCompletionTokens int64
}

// NewClient initializes a GenAI client using the OPENAI_API_KEY environment
// variable.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		chat:                completionsAdapter{svc: cli.Chat.Completions},
		model:               DefaultModel,
		temperature:         DefaultTemperature,
		maxCompletionTokens: DefaultMaxCompletionTokens,
	}, nil
}

// Assist answers a free-form customer question.
func (c *Client) Assist(ctx context.Context, question string) (string, error) {
	return c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(assistSystemPrompt),
		openai.UserMessage(question),
	})
}

// GenerateWithMessages runs one chat completion over the given messages and
// returns the first choice.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxCompletionTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateWithMessages: completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
