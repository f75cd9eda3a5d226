package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const defaultSystemTemplate = `You are an assistant that answers questions from a knowledge base.

IMPORTANT:
- Use ONLY the information from the provided context
- Answer the question based on that context alone
- If the context is insufficient or does not match the question, say so explicitly
- Do NOT use your own knowledge, ONLY the supplied context`

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider string // "ollama" or "openai"
	Model    string
	BaseURL  string
	Token    string

	// Temperature distinguishes unset (nil, defaults to 0.1) from an
	// explicit 0.
	Temperature    *float64
	MaxTokens      int
	SystemTemplate string
}

// ChatEngine synthesizes the final answer from a query and retrieved
// context. The prompt contract requires context-only grounding.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

func NewChatWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Temperature == nil {
		defaultTemp := 0.1
		config.Temperature = &defaultTemp
	}
	if *config.Temperature < 0 || *config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.Token != "" {
			opts = append(opts, openai.WithToken(config.Token))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Answer generates a response to query grounded in the supplied context.
func (ce *ChatEngine) Answer(ctx context.Context, query, docContext string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman,
			fmt.Sprintf("Question: %q\n\nContext from the knowledge base:\n%s", query, docContext)),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(*ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat returned no choices")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
