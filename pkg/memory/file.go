package memory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

/*
FileStore persists each session's turns as a JSON array in its own file
under dir. Writes go to a temporary file and are renamed into place, so
a crash mid-write never leaves a session log that parses but is missing
turns. A per-session mutex serializes appends; distinct sessions do not
contend.
*/
type FileStore struct {
	dir       string
	summarize Summarizer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type FileStoreOption func(*FileStore)

func NewFileStore(dir string, options ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.ErrPersistence.WithMessagef("creating memory directory %s: %v", dir, err)
	}

	store := &FileStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}

	for _, option := range options {
		option(store)
	}

	return store, nil
}

// WithFileSummarizer enables per-turn summarisation before append.
func WithFileSummarizer(fn Summarizer) FileStoreOption {
	return func(s *FileStore) {
		s.summarize = fn
	}
}

func (s *FileStore) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// sessionPath flattens the session ID into a safe file name.
func (s *FileStore) sessionPath(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return filepath.Join(s.dir, name+".json")
}

func (s *FileStore) Append(ctx context.Context, sessionID string, turn types.MemoryTurn) error {
	turn.SessionID = sessionID
	applySummary(ctx, s.summarize, &turn)

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	turns, err := s.read(sessionID)
	if err != nil {
		return err
	}

	turns = append(turns, turn)

	buf, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return errors.ErrPersistence.WithMessagef("encoding session %s: %v", sessionID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.json")
	if err != nil {
		return errors.ErrPersistence.WithMessagef("creating temp file: %v", err)
	}

	if _, err = tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("writing session %s: %v", sessionID, err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("closing temp file: %v", err)
	}

	if err = os.Rename(tmp.Name(), s.sessionPath(sessionID)); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithMessagef("replacing session log %s: %v", sessionID, err)
	}

	return nil
}

func (s *FileStore) Recent(ctx context.Context, sessionID string, limit int) ([]types.MemoryTurn, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	turns, err := s.read(sessionID)
	if err != nil {
		return nil, err
	}

	return lastN(turns, limit), nil
}

func (s *FileStore) read(sessionID string) ([]types.MemoryTurn, error) {
	buf, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []types.MemoryTurn{}, nil
		}
		return nil, errors.ErrPersistence.WithMessagef("reading session %s: %v", sessionID, err)
	}

	var turns []types.MemoryTurn
	if err := json.Unmarshal(buf, &turns); err != nil {
		return nil, errors.ErrPersistence.WithMessagef("decoding session %s: %v", sessionID, err)
	}

	return turns, nil
}
