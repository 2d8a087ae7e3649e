package core

import "time"

// Observer receives store and orchestrator events. internal/metrics provides
// the Prometheus implementation.
type Observer interface {
	TableWritten(table string)
	TxCommitted(tables int, d time.Duration)
	EditionUpserted(variant string)
	EditionDeleted()
}

type nopObserver struct{}

func (nopObserver) TableWritten(string) {}
func (nopObserver) TxCommitted(int, time.Duration) {}
func (nopObserver) EditionUpserted(string) {}
func (nopObserver) EditionDeleted() {}
