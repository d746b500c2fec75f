/*
Package memory provides the append-only conversation log backing the
query pipeline. Each session owns its own ordered sequence of turns;
appends are serialized per session so causal ordering survives
concurrent invocations, while unrelated sessions proceed in parallel.
*/
package memory

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/thothlabs/thoth/pkg/types"
)

/*
Store is the contract the pipeline depends on. Recent returns the most
recent limit turns in chronological order (oldest first) and never fails
for an unknown session; it simply returns an empty slice.
*/
type Store interface {
	Append(ctx context.Context, sessionID string, turn types.MemoryTurn) error
	Recent(ctx context.Context, sessionID string, limit int) ([]types.MemoryTurn, error)
}

/*
Summarizer condenses a (query, response) pair before it is stored. A
failing summarizer logs and is skipped; it can never block an append.
*/
type Summarizer func(ctx context.Context, query, response string) (string, error)

type sessionLog struct {
	mu    sync.Mutex
	turns []types.MemoryTurn
}

/*
InMemoryStore is the default Store: a map of per-session logs guarded by
a read/write mutex, with a dedicated mutex per session for appends.
*/
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*sessionLog
	summarize Summarizer
}

type InMemoryStoreOption func(*InMemoryStore)

func NewInMemoryStore(options ...InMemoryStoreOption) *InMemoryStore {
	store := &InMemoryStore{sessions: make(map[string]*sessionLog)}

	for _, option := range options {
		option(store)
	}

	return store
}

// WithSummarizer enables per-turn summarisation before append.
func WithSummarizer(fn Summarizer) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		s.summarize = fn
	}
}

func (s *InMemoryStore) session(id string) *sessionLog {
	s.mu.RLock()
	sl, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok = s.sessions[id]; !ok {
		sl = &sessionLog{}
		s.sessions[id] = sl
	}
	return sl
}

func (s *InMemoryStore) Append(ctx context.Context, sessionID string, turn types.MemoryTurn) error {
	turn.SessionID = sessionID
	applySummary(ctx, s.summarize, &turn)

	sl := s.session(sessionID)
	sl.mu.Lock()
	sl.turns = append(sl.turns, turn)
	sl.mu.Unlock()

	return nil
}

func (s *InMemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]types.MemoryTurn, error) {
	sl := s.session(sessionID)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	return lastN(sl.turns, limit), nil
}

// lastN copies the most recent n turns, oldest first.
func lastN(turns []types.MemoryTurn, n int) []types.MemoryTurn {
	if n <= 0 || len(turns) == 0 {
		return []types.MemoryTurn{}
	}
	if n > len(turns) {
		n = len(turns)
	}
	out := make([]types.MemoryTurn, n)
	copy(out, turns[len(turns)-n:])
	return out
}

func applySummary(ctx context.Context, fn Summarizer, turn *types.MemoryTurn) {
	if fn == nil {
		return
	}

	summary, err := fn(ctx, turn.Query, turn.Response)
	if err != nil {
		log.Warn("turn summarizer failed, storing turn without summary", "error", err)
		return
	}
	turn.Summary = summary
}
