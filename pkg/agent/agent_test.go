package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/memory"
	"github.com/thothlabs/thoth/pkg/provider"
	"github.com/thothlabs/thoth/pkg/types"
)

type scriptedBackend struct {
	calls      int
	err        error
	reply      provider.Completion
	lastPrompt string
}

func (s *scriptedBackend) Complete(ctx context.Context, prompt string, cfg types.GenerationConfig) (*provider.Completion, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return nil, s.err
	}
	reply := s.reply
	return &reply, nil
}

func newTestAgent(backend provider.Interface, options ...AgentOption) *Agent {
	dp := provider.NewDispatcher(backend)
	return New(dp, options...)
}

func TestAsk_AppendsTurnOnSuccess(t *testing.T) {
	store := memory.NewInMemoryStore()
	backend := &scriptedBackend{reply: provider.Completion{Text: "four"}}
	a := newTestAgent(backend, WithStore(store))

	q := types.NewQuery("what is 2+2?", types.DefaultGenerationConfig())
	record, trace, err := a.Ask(context.Background(), q)

	require.NoError(t, err)
	assert.Equal(t, "four", record.Response)

	turns, err := store.Recent(context.Background(), q.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "what is 2+2?", turns[0].Query)
	assert.Equal(t, "four", turns[0].Response)

	names := make([]string, 0, 4)
	for _, stage := range trace.Stages() {
		names = append(names, stage.Name)
	}
	assert.Equal(t, []string{"recall", "assemble", "dispatch", "memorize"}, names)
}

func TestAsk_FailedDispatchLeavesMemoryClean(t *testing.T) {
	store := memory.NewInMemoryStore()
	backend := &scriptedBackend{err: errors.ErrInvalidRequest.WithMessagef("model rejected the request")}
	a := newTestAgent(backend, WithStore(store))

	q := types.NewQuery("hello", types.DefaultGenerationConfig())
	_, _, err := a.Ask(context.Background(), q)

	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))

	turns, err := store.Recent(context.Background(), q.SessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAsk_ConfigErrorPrecedesBackend(t *testing.T) {
	backend := &scriptedBackend{reply: provider.Completion{Text: "unused"}}
	a := newTestAgent(backend)

	cfg := types.DefaultGenerationConfig()
	cfg.MaxTokens = -1
	_, _, err := a.Ask(context.Background(), types.NewQuery("hi", cfg))

	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
	assert.Equal(t, 0, backend.calls)
}

func TestAsk_MissingSourceFailsBeforeBackend(t *testing.T) {
	backend := &scriptedBackend{reply: provider.Completion{Text: "unused"}}
	a := newTestAgent(backend)

	q := types.NewQuery("explain this", types.DefaultGenerationConfig())
	q.SourcePath = filepath.Join(t.TempDir(), "nope.txt")
	_, _, err := a.Ask(context.Background(), q)

	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	assert.Equal(t, 0, backend.calls)
}

func TestAsk_SourceReachesPrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("gophers burrow"), 0o644))

	backend := &scriptedBackend{reply: provider.Completion{Text: "they dig"}}
	a := newTestAgent(backend)

	q := types.NewQuery("what do gophers do?", types.DefaultGenerationConfig())
	q.SourcePath = path
	_, _, err := a.Ask(context.Background(), q)

	require.NoError(t, err)
	assert.Contains(t, backend.lastPrompt, "gophers burrow")
	assert.Contains(t, backend.lastPrompt, "what do gophers do?")
}

func TestAsk_PriorTurnsReachPrompt(t *testing.T) {
	store := memory.NewInMemoryStore()
	backend := &scriptedBackend{reply: provider.Completion{Text: "still four"}}
	a := newTestAgent(backend, WithStore(store))

	first := types.NewQuery("what is 2+2?", types.DefaultGenerationConfig())
	_, _, err := a.Ask(context.Background(), first)
	require.NoError(t, err)

	second := types.NewQuery("are you sure?", types.DefaultGenerationConfig())
	second.SessionID = first.SessionID
	_, _, err = a.Ask(context.Background(), second)
	require.NoError(t, err)

	assert.Contains(t, backend.lastPrompt, "what is 2+2?")
	assert.Contains(t, backend.lastPrompt, "are you sure?")
}
