package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/catalogue/internal/fsutil"
	"github.com/JonMunkholm/catalogue/internal/journal"
	"github.com/google/uuid"
)

// Tx is a staged view of the tables, handed out by Store.Update and
// Store.View. It implements Tables: loads see the transaction's own saves,
// and saves are held in memory until the enclosing Update commits.
type Tx struct {
	store    *Store
	id       string
	writable bool
	closed   bool

	rows   map[string][]Row
	staged []string
}

func newTx(s *Store, writable bool) *Tx {
	return &Tx{
		store:    s,
		id:       uuid.NewString(),
		writable: writable,
		rows:     make(map[string][]Row),
	}
}

// ID identifies the transaction in logs and the journal.
func (tx *Tx) ID() string { return tx.id }

// Staged returns the tables saved so far, in first-save order.
func (tx *Tx) Staged() []string {
	return append([]string(nil), tx.staged...)
}

// Load implements Tables.
func (tx *Tx) Load(ctx context.Context, table string) ([]Row, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, ok := tx.rows[table]
	if !ok {
		var err error
		rows, err = tx.store.load(table)
		if err != nil {
			return nil, err
		}
		tx.rows[table] = rows
	}
	return cloneRows(rows), nil
}

// Save implements Tables.
func (tx *Tx) Save(ctx context.Context, table string, rows []Row) error {
	if tx.closed {
		return ErrTxClosed
	}
	if !tx.writable {
		return ErrReadOnlyTx
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := lookup(table); err != nil {
		return err
	}

	if !tx.isStaged(table) {
		tx.staged = append(tx.staged, table)
	}
	tx.rows[table] = cloneRows(rows)
	return nil
}

func (tx *Tx) isStaged(table string) bool {
	for _, t := range tx.staged {
		if t == table {
			return true
		}
	}
	return false
}

// commit journals the staged tables, replaces their files, then clears the
// journal entry. Once the entry is appended the commit is durable: a failed
// file write is retried from the entry, and if that fails too the entry is
// left for the store to apply before its next operation.
func (tx *Tx) commit() error {
	if len(tx.staged) == 0 {
		return nil
	}

	files := make([]journal.File, 0, len(tx.staged))
	for _, table := range tx.staged {
		def, err := lookup(table)
		if err != nil {
			return err
		}
		data, err := encodeRows(def.Info.Columns, tx.rows[table])
		if err != nil {
			return fmt.Errorf("encode %s: %w", table, err)
		}
		files = append(files, journal.File{Path: tx.store.path(def), Data: data})
	}

	j := tx.store.journal
	if j == nil {
		return tx.writeFiles(files)
	}

	seq, err := j.Append(journal.Entry{
		TxID:    tx.id,
		Created: time.Now().UTC(),
		Files:   files,
	})
	if err != nil {
		return err
	}

	if err := tx.writeFiles(files); err != nil {
		slog.Warn("commit write failed, retrying from journal", "tx_id", tx.id, "error", err)
		if retryErr := tx.writeFiles(files); retryErr != nil {
			tx.store.needsReplay.Store(true)
			slog.Error("commit left pending in journal", "tx_id", tx.id, "error", retryErr)
			return fmt.Errorf("%w: %w", ErrCommitIncomplete, err)
		}
	}

	if err := j.Complete(seq); err != nil {
		// Files match the entry, so replaying it before the next commit is safe.
		tx.store.needsReplay.Store(true)
		slog.Warn("journal entry not cleared", "tx_id", tx.id, "error", err)
	}
	return nil
}

func (tx *Tx) writeFiles(files []journal.File) error {
	for i, f := range files {
		if err := fsutil.WriteFile(f.Path, f.Data, tableFileMode); err != nil {
			return fmt.Errorf("commit %s: write %s: %w", tx.id, tx.staged[i], err)
		}
		tx.store.observer.TableWritten(tx.staged[i])
	}
	return nil
}

func (tx *Tx) close() {
	tx.closed = true
	tx.rows = nil
}

func cloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
