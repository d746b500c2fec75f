package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thothlabs/thoth/pkg/types"
)

func turn(q, r string) types.MemoryTurn {
	return types.MemoryTurn{
		Timestamp: time.Now().UTC(),
		Query:     q,
		Response:  r,
	}
}

func TestInMemoryStore_AppendOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, "s1", turn("first", "r1")))
	require.NoError(t, store.Append(ctx, "s1", turn("second", "r2")))

	turns, err := store.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Query)
	assert.Equal(t, "second", turns[1].Query)
}

func TestInMemoryStore_UnknownSessionIsEmpty(t *testing.T) {
	store := NewInMemoryStore()

	turns, err := store.Recent(context.Background(), "never-seen", 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestInMemoryStore_RecentLimit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", turn(fmt.Sprintf("q%d", i), "r")))
	}

	turns, err := store.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q3", turns[0].Query)
	assert.Equal(t, "q4", turns[1].Query)
}

func TestInMemoryStore_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			session := fmt.Sprintf("session-%d", s)
			for i := 0; i < 25; i++ {
				_ = store.Append(ctx, session, turn(fmt.Sprintf("q%d", i), "r"))
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 8; s++ {
		turns, err := store.Recent(ctx, fmt.Sprintf("session-%d", s), 25)
		require.NoError(t, err)
		require.Len(t, turns, 25)
		// Per-session append serialization preserves order.
		for i, tn := range turns {
			assert.Equal(t, fmt.Sprintf("q%d", i), tn.Query)
		}
	}
}

func TestInMemoryStore_SummarizerFailureDoesNotBlockAppend(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(WithSummarizer(func(ctx context.Context, q, r string) (string, error) {
		return "", assert.AnError
	}))

	require.NoError(t, store.Append(ctx, "s1", turn("q", "r")))

	turns, err := store.Recent(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Empty(t, turns[0].Summary)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "chat-1", turn("hello", "hi there")))
	require.NoError(t, store.Append(ctx, "chat-1", turn("more", "sure")))

	turns, err := store.Recent(ctx, "chat-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hello", turns[0].Query)
	assert.Equal(t, "chat-1", turns[0].SessionID)
	assert.Equal(t, "more", turns[1].Query)
}

func TestFileStore_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "a", turn("qa", "ra")))
	require.NoError(t, store.Append(ctx, "b", turn("qb", "rb")))

	turns, err := store.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "qa", turns[0].Query)
}

func TestFileStore_SanitizesSessionNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "../../etc/passwd", turn("q", "r")))

	turns, err := store.Recent(ctx, "../../etc/passwd", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}
