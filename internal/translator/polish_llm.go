package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
	openai "github.com/sashabaranov/go-openai"
)

const polishSystemPrompt = "You rewrite subtitle lines for text-to-speech. " +
	"Keep the meaning, keep names and numbers, make the line sound natural and short. " +
	"Reply with the rewritten line only."

// LLMPolisher polishes text through an OpenAI compatible chat completion API.
type LLMPolisher struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewLLMPolisher creates a polisher for the given base URL and model.
func NewLLMPolisher(apiKey, baseURL, model string, timeout time.Duration) *LLMPolisher {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMPolisher{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (p *LLMPolisher) Polish(ctx context.Context, text, lang string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if lang == "" {
		lang = "unspecified"
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: polishSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Target language: %s\nText: %s", lang, text)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.API, "llm polish failed")
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.API, "llm polish returned no choices")
	}
	polished := strings.TrimSpace(resp.Choices[0].Message.Content)
	if polished == "" {
		return "", apperr.New(apperr.API, "llm polish returned empty text")
	}
	return polished, nil
}
