// internal/ai/completer.go
package ai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	stderrors "bc-assistant/internal/common/errors"
)

// Completer is the opaque text completion capability: one prompt in, one
// generated text out. May fail transiently.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient implements Completer against the OpenAI API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	allOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{
		client: openai.NewClient(allOpts...),
		model:  model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", stderrors.NewCompletionFailedError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", stderrors.NewCompletionFailedError(errEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
