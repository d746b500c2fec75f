/*
Package assembler merges the query, an optional source document and
recent memory turns into one bounded context. Allocation order is fixed
and documented: the query is reserved first and never truncated, the
source document comes next (an explicitly attached file outranks
history), and memory turns take whatever remains, newest first. The
budget is counted in characters of prompt text, which keeps assembly a
pure, deterministic function over sizes.
*/
package assembler

import (
	"fmt"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

// DefaultBudget is the combined character budget for one context.
const DefaultBudget = 16000

type Assembler struct{}

func New() *Assembler {
	return &Assembler{}
}

/*
Assemble builds the bounded context. turns must be in chronological
order (oldest first), the order Store.Recent produces. The returned
context satisfies Size() <= budget; when even the bare query exceeds the
budget the assembly fails with a budget error and nothing is dispatched.
*/
func (a *Assembler) Assemble(
	query string,
	src *types.SourceDocument,
	turns []types.MemoryTurn,
	budget int,
) (*types.AssembledContext, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	// The query is authoritative: it is never truncated.
	if len(query) > budget {
		return nil, errors.ErrBudgetExceeded.WithMessagef(
			"query is %d characters, budget is %d", len(query), budget,
		)
	}

	actx := &types.AssembledContext{Budget: budget}
	remaining := budget - len(query)

	var sourceSeg *types.Segment
	if src != nil {
		text := src.Text
		if len(text) > remaining {
			text = truncate(text, remaining)
			actx.Truncated = true
		}
		// Load-time truncation counts too: the document no longer equals
		// the file the caller named.
		if src.Truncated {
			actx.Truncated = true
		}
		if len(text) > 0 {
			sourceSeg = &types.Segment{Kind: types.SegmentSource, Text: text}
			remaining -= len(text)
		} else {
			actx.Truncated = true
		}
	}

	// Memory: walk newest-first, keep whole turns while they fit, then
	// emit the keepers oldest-first. Recency bias is the documented
	// policy; there is no semantic ranking here.
	var kept []types.Segment
	for i := len(turns) - 1; i >= 0; i-- {
		text := renderTurn(turns[i])
		if len(text) > remaining {
			actx.Truncated = true
			break
		}
		kept = append(kept, types.Segment{Kind: types.SegmentMemory, Text: text})
		remaining -= len(text)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		actx.Segments = append(actx.Segments, kept[i])
	}

	if sourceSeg != nil {
		actx.Segments = append(actx.Segments, *sourceSeg)
	}
	actx.Segments = append(actx.Segments, types.Segment{Kind: types.SegmentQuery, Text: query})

	return actx, nil
}

func renderTurn(turn types.MemoryTurn) string {
	if turn.Summary != "" {
		return fmt.Sprintf("Previously: %s", turn.Summary)
	}
	return fmt.Sprintf("User: %s\nAssistant: %s", turn.Query, turn.Response)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
