package provider

import (
	"context"
	stderrors "errors"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

/*
AnthropicProvider is a provider for the Anthropic API.
*/
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

type AnthropicProviderOption func(*AnthropicProvider)

func NewAnthropicProvider(options ...AnthropicProviderOption) *AnthropicProvider {
	prvdr := &AnthropicProvider{model: string(anthropic.ModelClaude3_5HaikuLatest)}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.client == nil {
		WithAnthropicClient()(prvdr)
	}

	return prvdr
}

func (prvdr *AnthropicProvider) Complete(
	ctx context.Context, prompt string, cfg types.GenerationConfig,
) (*Completion, error) {
	model := prvdr.model
	if cfg.Model != "" {
		model = cfg.Model
	}

	msg, err := prvdr.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(cfg.MaxTokens),
		Temperature: anthropic.Float(cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, classifyAnthropicError(ctx, err)
	}

	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	return &Completion{
		Text:             text,
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
		TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}, nil
}

func classifyAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.ErrBackendUnavailable.WithMessagef("anthropic call aborted: %v", err)
	}

	var apierr *anthropic.Error
	if stderrors.As(err, &apierr) {
		if apierr.StatusCode >= 400 && apierr.StatusCode < 500 && apierr.StatusCode != 429 {
			return errors.ErrInvalidRequest.WithMessagef("anthropic rejected the request: %v", err)
		}
	}

	return errors.ErrBackendUnavailable.WithMessagef("anthropic call failed: %v", err)
}

func WithAnthropicClient() AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		client := anthropic.NewClient(
			option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithAnthropicModel(model string) AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		if model != "" {
			prvdr.model = model
		}
	}
}
