// Package journal implements a write-ahead journal for multi-file table commits.
//
// Before a transaction replaces any table file it appends one Entry holding the
// full new contents of every file it is about to write. Once all files are in
// place the entry is removed. Entries still present when the store opens belong
// to commits that were interrupted and are replayed.
//
// Entries live in a single bbolt bucket keyed by a monotonically increasing
// sequence number, so Pending returns them in commit order. Values are msgpack.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("pending")

// ErrClosed is returned when the journal is used after Close.
var ErrClosed = errors.New("journal closed")

// File is the complete new content of one table file.
type File struct {
	Path string `msgpack:"p"`
	Data []byte `msgpack:"d"`
}

// Entry is one committed-but-not-yet-applied write set.
type Entry struct {
	Seq     uint64    `msgpack:"-"`
	TxID    string    `msgpack:"id"`
	Created time.Time `msgpack:"t"`
	Files   []File    `msgpack:"f"`
}

// Journal is a bbolt-backed write-ahead journal.
type Journal struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append durably records e and returns its sequence number.
func (j *Journal) Append(e Entry) (uint64, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return 0, fmt.Errorf("encode journal entry: %w", err)
	}

	var seq uint64
	err = j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("append journal entry: %w", err)
	}
	return seq, nil
}

// Complete removes the entry with the given sequence number.
func (j *Journal) Complete(seq uint64) error {
	if j.db == nil {
		return ErrClosed
	}
	err := j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(seqKey(seq))
	})
	if err != nil {
		return fmt.Errorf("complete journal entry %d: %w", seq, err)
	}
	return nil
}

// Pending returns all entries not yet completed, oldest first.
func (j *Journal) Pending() ([]Entry, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			var e Entry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode journal entry: %w", err)
			}
			e.Seq = binary.BigEndian.Uint64(k)
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying bbolt file.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
