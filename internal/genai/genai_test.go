package genai

import (
	"context"
	"fmt"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func newMockClient(mock *mockChatService) *Client {
	return &Client{chat: mock, model: "test-model", temperature: 0.1, maxCompletionTokens: 100}
}

func TestAssist_Success(t *testing.T) {
	mock := &mockChatService{
		resp: openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Installations take about two hours."}},
		}},
	}
	client := newMockClient(mock)

	answer, err := client.Assist(context.Background(), "How long does an installation take?")
	if err != nil {
		t.Fatalf("Assist failed: %v", err)
	}
	if answer != "Installations take about two hours." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system + user message, got %d", len(mock.params.Messages))
	}
	if mock.params.Model != "test-model" {
		t.Errorf("model = %s", mock.params.Model)
	}
}

func TestGenerateWithMessages_NoChoices(t *testing.T) {
	client := newMockClient(&mockChatService{resp: openai.ChatCompletion{}})
	if _, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestGenerateWithMessages_Error(t *testing.T) {
	client := newMockClient(&mockChatService{err: fmt.Errorf("rate limited")})
	if _, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without OPENAI_API_KEY")
	}
}
