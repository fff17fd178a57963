// Package search provides debounced, cancellable lookups where only the most
// recently issued request per field is honored.
package search

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStale is returned to a lookup that was superseded by a newer one.
// Callers discard it silently.
var ErrStale = errors.New("search: superseded by a newer lookup")

// Tracker issues monotonically increasing tokens for one input field. Starting
// a lookup cancels the previous one; a response is applied only while its
// token is still the latest.
type Tracker struct {
	delay time.Duration

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

func NewTracker(delay time.Duration) *Tracker {
	return &Tracker{delay: delay}
}

// Ticket identifies one issued lookup.
type Ticket struct {
	token uint64
	t     *Tracker
}

// Current reports whether no newer lookup has been issued since this ticket.
func (tk Ticket) Current() bool {
	tk.t.mu.Lock()
	defer tk.t.mu.Unlock()
	return tk.t.token == tk.token
}

// Begin invalidates the in-flight lookup (if any) and returns a new ticket
// with a context that is cancelled when a newer lookup starts.
func (t *Tracker) Begin(parent context.Context) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.token++
	t.cancel = cancel
	return Ticket{token: t.token, t: t}, ctx
}

// Invalidate discards whatever lookup is in flight.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.token++
}

// done releases the context of a finished lookup if it is still the latest.
func (t *Tracker) done(tk Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == tk.token && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Run waits the debounce delay, then calls fn. It returns ErrStale when a
// newer lookup was issued before fn's result could be applied.
func Run[T any](ctx context.Context, t *Tracker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	tk, lctx := t.Begin(ctx)
	defer t.done(tk)

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		select {
		case <-lctx.Done():
			timer.Stop()
			if !tk.Current() {
				return zero, ErrStale
			}
			return zero, lctx.Err()
		case <-timer.C:
		}
	}

	res, err := fn(lctx)
	if !tk.Current() {
		return zero, ErrStale
	}
	if err != nil {
		return zero, err
	}
	return res, nil
}
