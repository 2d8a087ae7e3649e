package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/catalogue/internal/fsutil"
	"github.com/JonMunkholm/catalogue/internal/journal"
)

const tableFileMode = 0o644

// Store reads and writes the registered tables as files in one directory.
//
// Store itself implements Tables with independent load/save round trips.
// Multi-table writes go through Update, which stages every save in a Tx and
// commits the set through the write-ahead journal when one is configured.
// A single RWMutex serializes writers; loads share the read lock.
//
// A commit whose files could not all be written stays pending in the
// journal. Every later operation applies it first, so no newer write can be
// overwritten by a stale replay.
type Store struct {
	dir      string
	journal  *journal.Journal
	observer Observer

	mu          sync.RWMutex
	needsReplay atomic.Bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithJournal makes Update commits crash-safe. The store takes ownership of j
// and closes it in Close.
func WithJournal(j *journal.Journal) StoreOption {
	return func(s *Store) { s.journal = j }
}

// WithObserver installs an event observer.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// OpenStore opens the table directory and replays any commit the journal
// recorded but did not finish applying.
func OpenStore(dir string, opts ...StoreOption) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}

	s := &Store{dir: dir, observer: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}

	if s.journal != nil {
		if err := s.replay(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Close releases the journal, if any.
func (s *Store) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (s *Store) path(def TableDefinition) string {
	return filepath.Join(s.dir, def.Info.File)
}

// Load implements Tables.
func (s *Store) Load(ctx context.Context, table string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureApplied(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(table)
}

// Save implements Tables. The file is replaced atomically.
func (s *Store) Save(ctx context.Context, table string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	def, err := lookup(table)
	if err != nil {
		return err
	}
	data, err := encodeRows(def.Info.Columns, rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyPending(); err != nil {
		return err
	}
	if err := fsutil.WriteFile(s.path(def), data, tableFileMode); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	s.observer.TableWritten(table)
	return nil
}

// Export copies the raw file of table to w under the read lock.
func (s *Store) Export(ctx context.Context, table string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	def, err := lookup(table)
	if err != nil {
		return err
	}
	if err := s.ensureApplied(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path(def))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, def.Info.File)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Update runs fn inside a writable transaction holding the writer lock.
// If fn returns nil the staged tables are committed together; otherwise
// they are discarded and no file is touched. fn must use tx, not s.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyPending(); err != nil {
		return err
	}

	tx := newTx(s, true)
	defer tx.close()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}

	start := time.Now()
	if err := tx.commit(); err != nil {
		return err
	}
	if n := len(tx.staged); n > 0 {
		s.observer.TxCommitted(n, time.Since(start))
	}
	return nil
}

// View runs fn with a read-only, consistent view of every table.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.ensureApplied(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := newTx(s, false)
	defer tx.close()
	return fn(tx)
}

// load reads a table without locking. Callers hold s.mu.
func (s *Store) load(table string) ([]Row, error) {
	def, err := lookup(table)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(def))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, def.Info.File)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer f.Close()

	_, rows, err := decodeRows(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return rows, nil
}

// applyPending replays commits left pending by a failed write. Callers hold
// s.mu for writing.
func (s *Store) applyPending() error {
	if !s.needsReplay.Load() {
		return nil
	}
	if err := s.replay(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitIncomplete, err)
	}
	s.needsReplay.Store(false)
	return nil
}

// ensureApplied is applyPending for callers that do not hold s.mu.
func (s *Store) ensureApplied() error {
	if !s.needsReplay.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyPending()
}

// replay applies journal entries left behind by an interrupted commit.
func (s *Store) replay() error {
	pending, err := s.journal.Pending()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	for _, e := range pending {
		slog.Warn("replaying interrupted commit",
			"tx_id", e.TxID,
			"created", e.Created,
			"files", len(e.Files),
		)
		for _, f := range e.Files {
			if err := fsutil.WriteFile(f.Path, f.Data, tableFileMode); err != nil {
				return fmt.Errorf("replay journal entry %s: %w", e.TxID, err)
			}
		}
		if err := s.journal.Complete(e.Seq); err != nil {
			return err
		}
	}
	return nil
}
