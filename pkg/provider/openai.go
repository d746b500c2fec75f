package provider

import (
	"context"
	stderrors "errors"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

/*
OpenAIProvider is a provider for the OpenAI API.
*/
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

type OpenAIProviderOption func(*OpenAIProvider)

func NewOpenAIProvider(options ...OpenAIProviderOption) *OpenAIProvider {
	prvdr := &OpenAIProvider{model: string(openai.ChatModelGPT3_5Turbo)}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.client == nil {
		WithOpenAIClient()(prvdr)
	}

	return prvdr
}

func (prvdr *OpenAIProvider) Complete(
	ctx context.Context, prompt string, cfg types.GenerationConfig,
) (*Completion, error) {
	model := prvdr.model
	if cfg.Model != "" {
		model = cfg.Model
	}

	completion, err := prvdr.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(int64(cfg.MaxTokens)),
		Temperature: openai.Float(cfg.Temperature),
	})
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.ErrBackendUnavailable.WithMessagef("openai returned no choices")
	}

	return &Completion{
		Text:             completion.Choices[0].Message.Content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
	}, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.ErrBackendUnavailable.WithMessagef("openai call aborted: %v", err)
	}

	var apierr *openai.Error
	if stderrors.As(err, &apierr) {
		// 429 is a rate limit and worth retrying; other 4xx statuses mean
		// the request itself is malformed.
		if apierr.StatusCode >= 400 && apierr.StatusCode < 500 && apierr.StatusCode != 429 {
			return errors.ErrInvalidRequest.WithMessagef("openai rejected the request: %v", err)
		}
	}

	return errors.ErrBackendUnavailable.WithMessagef("openai call failed: %v", err)
}

func WithOpenAIClient() OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		client := openai.NewClient(
			option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithOpenAIModel(model string) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		if model != "" {
			prvdr.model = model
		}
	}
}
