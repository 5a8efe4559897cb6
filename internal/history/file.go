// Package history stores per-thread conversation turns.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/docchat/internal/types"
)

// FileStore is a JSONL-backed append-only turn log.
// Turns are stored per thread in threads/<threadID>/turns.jsonl.
type FileStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ThreadID]*sync.Mutex
}

// NewFileStore creates a file-backed store rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:  root,
		locks: make(map[types.ThreadID]*sync.Mutex),
	}
}

// getLock returns the per-thread mutex, creating one if it doesn't exist.
func (s *FileStore) getLock(thread types.ThreadID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[thread]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[thread] = lock
	return lock
}

// ErrInvalidThread is returned for thread ids that cannot name a directory.
var ErrInvalidThread = errors.New("invalid thread id")

func invalidThread(thread types.ThreadID) error {
	return fmt.Errorf("%w: %q", ErrInvalidThread, thread)
}

func (s *FileStore) turnsPath(thread types.ThreadID) string {
	return filepath.Join(s.root, "threads", string(thread), "turns.jsonl")
}

// count reads the turn file and counts lines. Caller must hold the thread lock.
func (s *FileStore) count(thread types.ThreadID) (int64, error) {
	f, err := os.Open(s.turnsPath(thread))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan turns file: %w", err)
	}
	return count, nil
}

// Append adds a turn with the next sequence number.
func (s *FileStore) Append(_ context.Context, turn *types.Turn) error {
	if !turn.ThreadID.Valid() {
		return invalidThread(turn.ThreadID)
	}
	lock := s.getLock(turn.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.turnsPath(turn.ThreadID)), 0o755); err != nil {
		return fmt.Errorf("create thread dir: %w", err)
	}

	existing, err := s.count(turn.ThreadID)
	if err != nil {
		return err
	}
	turn.Seq = existing + 1

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	f, err := os.OpenFile(s.turnsPath(turn.ThreadID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}
	return nil
}

// Tail returns the last limit turns in order. A non-positive limit returns
// every turn.
func (s *FileStore) Tail(_ context.Context, thread types.ThreadID, limit int) ([]*types.Turn, error) {
	if !thread.Valid() {
		return nil, invalidThread(thread)
	}
	lock := s.getLock(thread)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.turnsPath(thread))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan turns file: %w", err)
	}

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// Count returns the number of turns for the thread.
func (s *FileStore) Count(_ context.Context, thread types.ThreadID) (int64, error) {
	if !thread.Valid() {
		return 0, invalidThread(thread)
	}
	lock := s.getLock(thread)
	lock.Lock()
	defer lock.Unlock()

	return s.count(thread)
}

var _ types.HistoryStore = (*FileStore)(nil)
