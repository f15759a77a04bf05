package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

var _ Client = (*MockClient)(nil)

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	req := MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,
		Messages:  []Message{{Role: "user", Content: "Resume la residencia"}},
	}
	mc.On("CreateMessage", mock.Anything, req).Return(&MessageResponse{
		ID:      "msg_1",
		Content: []ContentBlock{{Type: "text", Text: `{"summary":"ok"}`}},
	}, nil)

	resp, err := mc.CreateMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, resp.Text())
	mc.AssertExpectations(t)
}

func TestCreateMessage_MockClientError(t *testing.T) {
	mc := new(MockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	resp, err := mc.CreateMessage(context.Background(), MessageRequest{})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMessageResponse_Text(t *testing.T) {
	tests := []struct {
		name string
		resp *MessageResponse
		want string
	}{
		{"nil", nil, ""},
		{"empty", &MessageResponse{}, ""},
		{"joins text blocks", &MessageResponse{Content: []ContentBlock{
			{Type: "text", Text: "{\"a\":"},
			{Type: "text", Text: "1}"},
		}}, "{\"a\":1}"},
		{"skips other blocks", &MessageResponse{Content: []ContentBlock{
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "kept"},
		}}, "kept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.Text())
		})
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{"haiku", "claude-haiku-4-5-20251001", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 6.00},
		{"sonnet", "claude-sonnet-4-5-20250929", TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}, 4.50},
		{"cache", "claude-sonnet-4-5-20250929", TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}, 3.75 + 0.30},
		{"unknown model", "gpt-4", TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero tokens", "claude-haiku-4-5-20251001", TokenUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 1e-9)
		})
	}
}

func TestLogUsage_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10}.LogUsage("claude-haiku-4-5-20251001", "summary", "abc")
	})
}
