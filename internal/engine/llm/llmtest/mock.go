// Package llmtest provides a testify mock of llm.Client.
package llmtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rendis/gridrank/internal/engine/llm"
)

// MockClient implements llm.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.MessageResponse), args.Error(1)
}

// TruncatedResponse builds a text reply that stopped at the token limit.
func TruncatedResponse(text string) *llm.MessageResponse {
	r := TextResponse(text)
	r.StopReason = llm.StopMaxTokens
	return r
}

// TextResponse builds a single text block reply.
func TextResponse(text string) *llm.MessageResponse {
	return &llm.MessageResponse{
		ID:      "msg_test",
		Model:   "claude-test",
		Content: []llm.ContentBlock{{Type: "text", Text: text}},
	}
}
