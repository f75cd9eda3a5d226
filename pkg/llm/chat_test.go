package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

type stubModel struct {
	lastMessages []llms.MessageContent
	response     string
	fail         bool
}

func (s *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.lastMessages = messages
	if s.fail {
		return nil, fmt.Errorf("model overloaded")
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.response}},
	}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := s.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func temperature(v float64) *float64 { return &v }

func TestChatEngine_Answer(t *testing.T) {
	model := &stubModel{response: "  B happened after A.  "}
	ce := &ChatEngine{
		config: ChatConfig{
			Temperature:    temperature(0.1),
			MaxTokens:      100,
			SystemTemplate: defaultSystemTemplate,
		},
		llm: model,
	}

	answer, err := ce.Answer(context.Background(), "what happened?", "A happened. B happened.")
	require.NoError(t, err)
	assert.Equal(t, "B happened after A.", answer)

	// system prompt carries the context-only contract, human turn carries
	// query and context
	require.Len(t, model.lastMessages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.lastMessages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.lastMessages[1].Role)
}

func TestChatEngine_AnswerPropagatesProviderError(t *testing.T) {
	ce := &ChatEngine{
		config: ChatConfig{Temperature: temperature(0.1), MaxTokens: 100},
		llm:    &stubModel{fail: true},
	}

	_, err := ce.Answer(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat error")
}

func TestNewChatWithConfig_Validation(t *testing.T) {
	_, err := NewChatWithConfig(ChatConfig{Temperature: temperature(3)})
	assert.Error(t, err)

	_, err = NewChatWithConfig(ChatConfig{MaxTokens: -1})
	assert.Error(t, err)

	_, err = NewChatWithConfig(ChatConfig{Provider: "smoke-signals"})
	assert.Error(t, err)
}

func TestNewChatWithConfig_Temperature(t *testing.T) {
	// explicit zero is a valid setting, not a request for the default
	ce, err := NewChatWithConfig(ChatConfig{Temperature: temperature(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *ce.config.Temperature)

	ce, err = NewChatWithConfig(ChatConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0.1, *ce.config.Temperature)
}
