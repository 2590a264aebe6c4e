package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the poll interval while waiting for the file lock.
const lockRetryDelay = 50 * time.Millisecond

// Store manages per-user fact files under a single directory.
//
// Store serializes updates per user: an in-process mutex orders goroutines,
// a flock on the fact file orders processes. Reads take no lock; the atomic
// rename in Persist guarantees a reader never sees a partial file.
type Store struct {
	dir       string
	extractor Extractor
	logger    *slog.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, extractor Extractor, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("memory directory is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating memory directory: %w", err)
	}
	return &Store{
		dir:       dir,
		extractor: extractor,
		logger:    logger,
		users:     make(map[string]*sync.Mutex),
	}, nil
}

// userMutex returns the per-user mutex, creating it on first use.
func (s *Store) userMutex(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[userID]
	if !ok {
		m = &sync.Mutex{}
		s.users[userID] = m
	}
	return m
}

// factPath maps a user id to its fact file. User ids are sanitized so a
// hostile id cannot escape the memory directory.
func (s *Store) factPath(userID string) (string, error) {
	safe := sanitizeUserID(userID)
	if safe == "" {
		return "", fmt.Errorf("user id %q has no usable characters", userID)
	}
	return filepath.Join(s.dir, safe+".txt"), nil
}

// sanitizeUserID keeps [A-Za-z0-9._-] and replaces everything else with '_'.
// Leading dots are dropped to rule out hidden files and "..".
func sanitizeUserID(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

// Load reads the facts for a user. A missing file means the user has no
// memory yet and returns an empty list, not an error.
func (s *Store) Load(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.factPath(userID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading memory file: %w", err)
	}

	facts := []string{}
	for line := range strings.Lines(string(data)) {
		if f := normalizeFact(line); f != "" {
			facts = append(facts, f)
		}
	}
	return facts, nil
}

// Reconcile asks the extraction agent for a delta against the current facts
// and applies it: removals first, then additions, then dedup.
func (s *Store) Reconcile(ctx context.Context, facts []string, lastUserMessage string) ([]string, error) {
	upd, err := s.extractor.Extract(ctx, facts, lastUserMessage)
	if err != nil {
		return nil, fmt.Errorf("extracting memory update: %w", err)
	}
	if upd.Empty() {
		return slices.Clone(facts), nil
	}
	merged := merge(facts, upd)
	s.logger.Debug("reconciled memory",
		"added", len(upd.Add), "removed", len(upd.Remove), "total", len(merged))
	return merged, nil
}

// Persist atomically overwrites the user's fact file. The write goes to a
// temp file in the same directory followed by a rename, under a flock so
// concurrent processes cannot interleave.
func (s *Store) Persist(ctx context.Context, userID string, facts []string) error {
	path, err := s.factPath(userID)
	if err != nil {
		return err
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking memory file: %w", err)
	}
	if !locked {
		return fmt.Errorf("memory file %s is locked", path)
	}
	defer func() {
		if unlockErr := fl.Unlock(); unlockErr != nil {
			s.logger.Warn("unlocking memory file", "path", path, "error", unlockErr)
		}
	}()

	var b strings.Builder
	for _, f := range facts {
		b.WriteString(f)
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(s.dir, ".memory-*")
	if err != nil {
		return fmt.Errorf("creating temp memory file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp memory file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing memory file: %w", err)
	}
	return nil
}

// Update runs the full Load -> Reconcile -> Persist cycle for a user,
// serialized per user. A no-op delta skips the write entirely.
func (s *Store) Update(ctx context.Context, userID, lastUserMessage string) error {
	m := s.userMutex(userID)
	m.Lock()
	defer m.Unlock()

	facts, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}

	merged, err := s.Reconcile(ctx, facts, lastUserMessage)
	if err != nil {
		return err
	}

	if slices.Equal(facts, merged) {
		s.logger.Debug("memory unchanged", "user_id", userID)
		return nil
	}

	return s.Persist(ctx, userID, merged)
}
