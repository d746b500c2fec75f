package cmd

import (
	"github.com/spf13/viper"

	"github.com/thothlabs/thoth/pkg/agent"
	"github.com/thothlabs/thoth/pkg/memory"
	"github.com/thothlabs/thoth/pkg/provider"
	"github.com/thothlabs/thoth/pkg/source"
)

/*
buildPipeline assembles the query pipeline from the active config. Both
the CLI and the server go through here so they always agree on backend,
budget and memory behavior.
*/
func buildPipeline() (*agent.Agent, error) {
	backend, err := provider.FromConfig()
	if err != nil {
		return nil, err
	}

	dispatcher := provider.NewDispatcher(
		backend,
		provider.WithTimeout(viper.GetDuration("backend.timeout")),
	)

	loader := source.NewLoader(
		source.WithMaxBytes(viper.GetInt("source.max_bytes")),
	)

	var store memory.Store = memory.NewInMemoryStore()
	if dir := viper.GetString("memory.dir"); dir != "" {
		store, err = memory.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
	}

	return agent.New(
		dispatcher,
		agent.WithLoader(loader),
		agent.WithStore(store),
		agent.WithMemoryWindow(viper.GetInt("memory.window")),
		agent.WithBudget(viper.GetInt("context.budget")),
	), nil
}
