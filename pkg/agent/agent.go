/*
Package agent wires the query pipeline together: load the optional
source file, pull recent memory, assemble a bounded context, dispatch it
to the backend, and record the turn. One Ask call is one synchronous
pipeline invocation; there is no background work.
*/
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thothlabs/thoth/pkg/assembler"
	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/memory"
	"github.com/thothlabs/thoth/pkg/metrics"
	"github.com/thothlabs/thoth/pkg/provider"
	"github.com/thothlabs/thoth/pkg/source"
	"github.com/thothlabs/thoth/pkg/types"
)

// DefaultMemoryWindow is how many recent turns are offered to the
// assembler per invocation.
const DefaultMemoryWindow = 10

type Agent struct {
	loader     *source.Loader
	store      memory.Store
	assembler  *assembler.Assembler
	dispatcher *provider.Dispatcher
	window     int
	budget     int
}

type AgentOption func(*Agent)

/*
New builds an Agent. A dispatcher is required; loader, store and
assembler fall back to working defaults.
*/
func New(dispatcher *provider.Dispatcher, options ...AgentOption) *Agent {
	agent := &Agent{
		loader:     source.NewLoader(),
		store:      memory.NewInMemoryStore(),
		assembler:  assembler.New(),
		dispatcher: dispatcher,
		window:     DefaultMemoryWindow,
		budget:     assembler.DefaultBudget,
	}

	for _, option := range options {
		option(agent)
	}

	return agent
}

func WithLoader(loader *source.Loader) AgentOption {
	return func(a *Agent) {
		a.loader = loader
	}
}

func WithStore(store memory.Store) AgentOption {
	return func(a *Agent) {
		a.store = store
	}
}

func WithMemoryWindow(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.window = n
		}
	}
}

func WithBudget(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.budget = n
		}
	}
}

/*
Ask runs one pipeline invocation. Configuration and input errors fail
before any backend call; the turn is appended to memory only when the
dispatch succeeded, so failed or cancelled queries never pollute the
conversation history.
*/
func (a *Agent) Ask(ctx context.Context, q types.Query) (*types.ResultRecord, *metrics.Trace, error) {
	trace := metrics.NewTrace()

	if err := q.Config.Validate(); err != nil {
		return nil, trace, err
	}

	var (
		doc *types.SourceDocument
		err error
	)
	if q.SourcePath != "" {
		done := trace.Start("load")
		doc, err = a.loader.Load(q.SourcePath)
		if err != nil {
			done()
			return nil, trace, err
		}
		done(loadNote(doc))
	}

	done := trace.Start("recall")
	turns, err := a.store.Recent(ctx, q.SessionID, a.window)
	done(fmt.Sprintf("%d turns", len(turns)))
	if err != nil {
		return nil, trace, err
	}

	done = trace.Start("assemble")
	actx, err := a.assembler.Assemble(q.Text, doc, turns, a.budget)
	if err != nil {
		done()
		return nil, trace, err
	}
	done(assembleNote(actx))

	done = trace.Start("dispatch")
	record, err := a.dispatcher.Dispatch(ctx, actx, q.Config)
	done()
	if err != nil {
		return nil, trace, err
	}

	done = trace.Start("memorize")
	appendErr := a.store.Append(ctx, q.SessionID, types.MemoryTurn{
		SessionID: q.SessionID,
		Timestamp: time.Now(),
		Query:     q.Text,
		Response:  record.Response,
	})
	done()
	if appendErr != nil {
		// The caller still gets their answer; losing the memory write is
		// reported, not silently swallowed.
		log.Error("failed to append memory turn", "session", q.SessionID, "error", appendErr)
		return record, trace, errors.ErrPersistence.WithMessagef(
			"response delivered but turn not recorded: %v", appendErr,
		)
	}

	return record, trace, nil
}

func loadNote(doc *types.SourceDocument) string {
	if doc.Truncated {
		return fmt.Sprintf("%s truncated from %d bytes", doc.Path, doc.ByteLen)
	}
	return fmt.Sprintf("%s (%d bytes)", doc.Path, doc.ByteLen)
}

func assembleNote(actx *types.AssembledContext) string {
	if actx.Truncated {
		return fmt.Sprintf("%d/%d chars, truncated", actx.Size(), actx.Budget)
	}
	return fmt.Sprintf("%d/%d chars", actx.Size(), actx.Budget)
}
