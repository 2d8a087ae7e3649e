package core

import "errors"

// Sentinel errors. Callers classify with errors.Is; messages are matched by
// MapError, so keep the wording in sync with errorPatterns.
var (
	// ErrTableNotFound means a table's file does not exist in the data directory.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnknownTable means the table key is not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrMalformedInput means a value could not be used as given.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEditionNotFound means no item row exists for the key.
	ErrEditionNotFound = errors.New("edition not found")

	// ErrKeyExhausted means no unused key was generated within the attempt limit.
	ErrKeyExhausted = errors.New("key generation exhausted")

	// ErrTxClosed is returned by a Tx used after its Update or View returned.
	ErrTxClosed = errors.New("transaction closed")

	// ErrCommitIncomplete means a journaled commit could not be written to
	// every table file. The change is durable: the store applies it before
	// any further operation, and rejects operations until it can.
	ErrCommitIncomplete = errors.New("commit incomplete")

	// ErrReadOnlyTx is returned by Save inside View.
	ErrReadOnlyTx = errors.New("read-only transaction")
)

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrEditionNotFound)
}
