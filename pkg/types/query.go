/*
Package types holds the value types that flow through the query pipeline:
the caller's Query, the generation configuration, the bounded assembled
context, memory turns and the final result record.
*/
package types

import (
	"github.com/cohesivestack/valgo"
	"github.com/google/uuid"

	"github.com/thothlabs/thoth/pkg/errors"
)

// OutputFormat selects the presentation of a result record.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

/*
Query is one immutable pipeline invocation: the caller's text, an
optional source file, and the configuration snapshot it runs under.
*/
type Query struct {
	ID         string
	SessionID  string
	Text       string
	SourcePath string
	Config     GenerationConfig
}

/*
NewQuery creates a Query with a fresh ID. The session defaults to
"default" so one-shot CLI invocations share a conversation history.
*/
func NewQuery(text string, config GenerationConfig) Query {
	return Query{
		ID:        uuid.NewString(),
		SessionID: "default",
		Text:      text,
		Config:    config,
	}
}

/*
GenerationConfig carries the caller-supplied generation parameters and
output mode. It is validated once at the pipeline boundary; invalid
values are a configuration error, never a dispatch failure.
*/
type GenerationConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Verbose     bool
	Format      OutputFormat
	// Sink is the output destination: empty means stdout, anything else
	// is a file path created (or overwritten) atomically.
	Sink string
}

// DefaultGenerationConfig mirrors the documented CLI defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:   1024,
		Temperature: 0.7,
		Format:      FormatText,
	}
}

// Validate checks the configuration at the pipeline boundary.
func (cfg GenerationConfig) Validate() error {
	val := valgo.Is(
		valgo.Number(cfg.MaxTokens, "max_tokens").GreaterThan(0),
	).Is(
		valgo.Number(cfg.Temperature, "temperature").Between(0.0, 2.0),
	).Is(
		valgo.String(string(cfg.Format), "format").InSlice([]string{
			string(FormatText), string(FormatJSON),
		}),
	)

	if !val.Valid() {
		return errors.ErrConfig.WithMessagef("%v", val.Error())
	}

	return nil
}
