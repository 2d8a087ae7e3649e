package images

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyUploads is returned when every upload slot stays busy for the
// limiter's wait time.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

// Limiter defaults.
const (
	DefaultMaxConcurrent = 4
	DefaultMaxWait       = 30 * time.Second
)

// Limiter bounds the number of image uploads processed at once.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows at most maxConcurrent uploads. Callers wait up to maxWait
// for a slot. Non-positive values select the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire takes a slot. Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyUploads
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of uploads in progress.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Capacity returns the maximum number of concurrent uploads.
func (l *Limiter) Capacity() int { return cap(l.slots) }

// WaitForDrain blocks until no upload is in progress or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
