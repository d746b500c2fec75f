package provider

import (
	"github.com/spf13/viper"

	"github.com/thothlabs/thoth/pkg/errors"
)

/*
FromConfig builds the backend named by the `backend.provider` config key
(openai, anthropic or ollama), with `backend.model` as its default
model.
*/
func FromConfig() (Interface, error) {
	v := viper.GetViper()
	model := v.GetString("backend.model")

	switch name := v.GetString("backend.provider"); name {
	case "", "openai":
		return NewOpenAIProvider(WithOpenAIModel(model)), nil
	case "anthropic":
		return NewAnthropicProvider(WithAnthropicModel(model)), nil
	case "ollama":
		return NewOllamaProvider(WithOllamaModel(model))
	default:
		return nil, errors.ErrConfig.WithMessagef("unknown backend provider %q", name)
	}
}
