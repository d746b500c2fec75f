package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thothlabs/thoth/pkg/presenter"
	"github.com/thothlabs/thoth/pkg/types"
)

var (
	fileFlag        string
	jsonFlag        bool
	maxTokensFlag   int
	temperatureFlag float64
	verboseFlag     bool
	outputFlag      string
	sessionFlag     string
	modelFlag       string

	askCmd = &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question, optionally grounded in a source file",
		Long:  longAsk,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := buildPipeline()
			if err != nil {
				return err
			}

			cfg := types.DefaultGenerationConfig()
			cfg.Model = modelFlag
			if cfg.Model == "" {
				cfg.Model = viper.GetString("backend.model")
			}
			if cmd.Flags().Changed("max-tokens") {
				cfg.MaxTokens = maxTokensFlag
			}
			if cmd.Flags().Changed("temperature") {
				cfg.Temperature = temperatureFlag
			}
			cfg.Verbose = verboseFlag
			cfg.Sink = outputFlag
			if jsonFlag {
				cfg.Format = types.FormatJSON
			}

			q := types.NewQuery(args[0], cfg)
			if sessionFlag != "" {
				q.SessionID = sessionFlag
			}
			q.SourcePath = fileFlag

			record, trace, err := pipeline.Ask(cmd.Context(), q)
			if err != nil {
				return err
			}

			return presenter.New().Present(record, cfg, trace)
		},
	}
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Source file to ground the answer in")
	askCmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the result as JSON")
	askCmd.Flags().IntVar(&maxTokensFlag, "max-tokens", 1024, "Completion token limit")
	askCmd.Flags().Float64Var(&temperatureFlag, "temperature", 0.7, "Sampling temperature (0 to 2)")
	askCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show per-stage pipeline timings")
	askCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the result to a file instead of stdout")
	askCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Conversation session to continue")
	askCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to query, overriding the config")
}

var longAsk = `
Ask a one-shot question. With --file the file's content is packed into
the prompt alongside the recent turns of the session, within the
configured context budget.

Examples:
  # Plain question
  thoth ask "what is a goroutine?"

  # Ground the answer in a file
  thoth ask "what does this code do?" --file main.go

  # Continue a named conversation with JSON output
  thoth ask "and why is that?" --session review --json
`
