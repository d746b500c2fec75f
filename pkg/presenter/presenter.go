/*
Package presenter serializes a result record to plain text or JSON and
writes it to standard output or a caller-named file. All modes render
from the same immutable ResultRecord; nothing is re-derived per mode.
*/
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/metrics"
	"github.com/thothlabs/thoth/pkg/types"
)

type Presenter struct {
	stdout io.Writer
}

type PresenterOption func(*Presenter)

func New(options ...PresenterOption) *Presenter {
	p := &Presenter{stdout: os.Stdout}

	for _, option := range options {
		option(p)
	}

	return p
}

// WithStdout redirects the confirmation/stdout stream, used in tests.
func WithStdout(w io.Writer) PresenterOption {
	return func(p *Presenter) {
		p.stdout = w
	}
}

// jsonResult fixes the stable field names of the JSON output mode.
type jsonResult struct {
	Query     string  `json:"query"`
	Response  string  `json:"response"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Truncated bool    `json:"truncated"`
	Error     *string `json:"error"`
}

/*
Present renders the record per cfg.Format and writes it to stdout or,
when cfg.Sink names a file, to that file via a temporary file renamed
into place, so a crash mid-write cannot leave a file that looks complete
but is truncated. The trace feeds the verbose diagnostic block and may
be nil.
*/
func (p *Presenter) Present(
	record *types.ResultRecord,
	cfg types.GenerationConfig,
	trace *metrics.Trace,
) error {
	rendered, err := p.render(record, cfg, trace)
	if err != nil {
		return err
	}

	if cfg.Sink == "" {
		_, err = io.WriteString(p.stdout, rendered)
		return err
	}

	if err = writeAtomic(cfg.Sink, []byte(rendered)); err != nil {
		return err
	}

	fmt.Fprintf(p.stdout, "output written to %s\n", cfg.Sink)
	return nil
}

func (p *Presenter) render(
	record *types.ResultRecord,
	cfg types.GenerationConfig,
	trace *metrics.Trace,
) (string, error) {
	if cfg.Format == types.FormatJSON {
		buf, err := json.MarshalIndent(jsonResult{
			Query:     record.Query,
			Response:  record.Response,
			ElapsedMS: record.Elapsed.Milliseconds(),
			Truncated: record.Truncated,
		}, "", "  ")
		if err != nil {
			return "", errors.ErrPersistence.WithMessagef("encoding result: %v", err)
		}
		return string(buf) + "\n", nil
	}

	var builder strings.Builder
	if cfg.Verbose && trace != nil {
		builder.WriteString("--- pipeline ---\n")
		for _, stage := range trace.Stages() {
			fmt.Fprintf(&builder, "%-10s %s", stage.Name, stage.Duration)
			if stage.Note != "" {
				fmt.Fprintf(&builder, "  (%s)", stage.Note)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("----------------\n")
	}

	builder.WriteString(record.Response)
	if !strings.HasSuffix(record.Response, "\n") {
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".thoth-out-*")
	if err != nil {
		return errors.ErrPersistence.WithMessagef("creating temp output in %s: %v", dir, err)
	}

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("writing output: %v", err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("closing output: %v", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("moving output into place: %v", err)
	}

	return nil
}
