package presenter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tj/assert"

	"github.com/thothlabs/thoth/pkg/metrics"
	"github.com/thothlabs/thoth/pkg/types"
)

func sampleRecord() *types.ResultRecord {
	return &types.ResultRecord{
		Query:    "what is this?",
		Response: "a test fixture",
		Elapsed:  1500 * time.Millisecond,
	}
}

func TestPresent_TextToStdout(t *testing.T) {
	var out bytes.Buffer
	p := New(WithStdout(&out))

	cfg := types.DefaultGenerationConfig()
	err := p.Present(sampleRecord(), cfg, nil)

	assert.NoError(t, err)
	assert.Equal(t, "a test fixture\n", out.String())
}

func TestPresent_JSONHasStableFields(t *testing.T) {
	var out bytes.Buffer
	p := New(WithStdout(&out))

	cfg := types.DefaultGenerationConfig()
	cfg.Format = types.FormatJSON
	err := p.Present(sampleRecord(), cfg, nil)
	assert.NoError(t, err)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "what is this?", decoded["query"])
	assert.Equal(t, "a test fixture", decoded["response"])
	assert.Equal(t, float64(1500), decoded["elapsed_ms"])
	assert.Equal(t, false, decoded["truncated"])
	assert.Nil(t, decoded["error"])
}

func TestPresent_VerboseTracePrecedesResponse(t *testing.T) {
	var out bytes.Buffer
	p := New(WithStdout(&out))

	trace := metrics.NewTrace()
	trace.Record("assemble", 2*time.Millisecond, "dropped 1 turn")

	cfg := types.DefaultGenerationConfig()
	cfg.Verbose = true
	assert.NoError(t, p.Present(sampleRecord(), cfg, trace))

	text := out.String()
	assert.Contains(t, text, "assemble")
	assert.Contains(t, text, "dropped 1 turn")
	assert.True(t, len(text) > len("a test fixture\n"))
}

func TestPresent_FileSinkIsIdempotent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")

	var out bytes.Buffer
	p := New(WithStdout(&out))
	cfg := types.DefaultGenerationConfig()
	cfg.Sink = target

	assert.NoError(t, p.Present(sampleRecord(), cfg, nil))
	first, err := os.ReadFile(target)
	assert.NoError(t, err)

	assert.NoError(t, p.Present(sampleRecord(), cfg, nil))
	second, err := os.ReadFile(target)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestPresent_FileSinkPrintsOnlyConfirmation(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")

	var out bytes.Buffer
	p := New(WithStdout(&out))
	cfg := types.DefaultGenerationConfig()
	cfg.Sink = target

	assert.NoError(t, p.Present(sampleRecord(), cfg, nil))

	assert.NotContains(t, out.String(), "a test fixture")
	assert.Contains(t, out.String(), target)
}

func TestPresent_BadSinkDirectory(t *testing.T) {
	var out bytes.Buffer
	p := New(WithStdout(&out))
	cfg := types.DefaultGenerationConfig()
	cfg.Sink = filepath.Join(t.TempDir(), "missing", "deeper", "out.txt")

	err := p.Present(sampleRecord(), cfg, nil)
	assert.Error(t, err)
}
