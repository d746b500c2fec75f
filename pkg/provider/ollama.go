package provider

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

/*
OllamaProvider is a provider for a local or remote Ollama instance.
*/
type OllamaProvider struct {
	client *api.Client
	model  string
}

type OllamaProviderOption func(*OllamaProvider)

func NewOllamaProvider(options ...OllamaProviderOption) (*OllamaProvider, error) {
	prvdr := &OllamaProvider{model: "llama3.2"}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.client == nil {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.ErrConfig.WithMessagef("ollama client: %v", err)
		}
		prvdr.client = client
	}

	return prvdr, nil
}

func (prvdr *OllamaProvider) Complete(
	ctx context.Context, prompt string, cfg types.GenerationConfig,
) (*Completion, error) {
	model := prvdr.model
	if cfg.Model != "" {
		model = cfg.Model
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": cfg.Temperature,
			"num_predict": cfg.MaxTokens,
		},
	}

	var (
		builder    strings.Builder
		promptEval int
		genEval    int
	)

	err := prvdr.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		builder.WriteString(resp.Message.Content)
		if resp.Done {
			promptEval = resp.PromptEvalCount
			genEval = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, classifyOllamaError(ctx, err)
	}

	return &Completion{
		Text:             builder.String(),
		PromptTokens:     int64(promptEval),
		CompletionTokens: int64(genEval),
		TotalTokens:      int64(promptEval + genEval),
	}, nil
}

func classifyOllamaError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.ErrBackendUnavailable.WithMessagef("ollama call aborted: %v", err)
	}

	var statusErr api.StatusError
	if stderrors.As(err, &statusErr) {
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != 429 {
			return errors.ErrInvalidRequest.WithMessagef("ollama rejected the request: %v", err)
		}
	}

	return errors.ErrBackendUnavailable.WithMessagef("ollama call failed: %v", err)
}

func WithOllamaClient(client *api.Client) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.client = client
	}
}

func WithOllamaModel(model string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		if model != "" {
			prvdr.model = model
		}
	}
}
