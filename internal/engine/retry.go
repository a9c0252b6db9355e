// Package engine implements the client-side synchronization core: a
// territory-scoped message cache, a background fetch coordinator, and the
// tick-driven lifecycles that own native marker and actor resources.
package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/metrics"
)

// Outcome is the result of one attempt at an Action.
type Outcome int

const (
	// Done removes the action from the queue.
	Done Outcome = iota
	// Retry keeps the action queued for another tick.
	Retry
	// GiveUp removes the action without it having succeeded.
	GiveUp
)

// Action is a unit of deferred native work. Run is only ever invoked from
// the tick context, at most once per tick per queue.
type Action interface {
	Run() Outcome
}

// maxTries is the per-action attempt ceiling. An action still reporting
// Retry after this many attempts is dropped so the queue cannot wedge on
// one poisoned entry.
const maxTries = 10

// RequeueMode controls where a retrying action waits for its next attempt.
type RequeueMode int

const (
	// RequeueTail moves a retrying action to the back of the queue so it
	// cannot starve the entries behind it.
	RequeueTail RequeueMode = iota
	// RetryInPlace leaves a retrying action at the head. Use this when
	// the queued actions form an ordered sequence.
	RetryInPlace
)

type retryEntry struct {
	action Action
	tries  int
}

// RetryQueue is a single-consumer FIFO of actions drained one per tick.
// Producers may push from any goroutine; DrainOne must only be called
// from the tick context.
type RetryQueue struct {
	log  zerolog.Logger
	mode RequeueMode

	mu      sync.Mutex
	entries []retryEntry
}

// NewRetryQueue creates an empty queue. The name tags log lines.
func NewRetryQueue(log zerolog.Logger, name string, mode RequeueMode) *RetryQueue {
	return &RetryQueue{
		log:  log.With().Str("queue", name).Logger(),
		mode: mode,
	}
}

// Push appends an action to the queue tail.
func (q *RetryQueue) Push(a Action) {
	q.mu.Lock()
	q.entries = append(q.entries, retryEntry{action: a})
	q.mu.Unlock()
}

// Len reports how many actions are waiting.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear drops all queued actions without running them.
func (q *RetryQueue) Clear() {
	q.mu.Lock()
	q.entries = nil
	q.mu.Unlock()
}

// DrainOne attempts the head action once. Done and GiveUp pop it; Retry
// keeps it queued according to the requeue mode. An action past the
// attempt ceiling is dropped with a warning. The lock is not held while
// the action runs, so actions are free to push follow-up work.
func (q *RetryQueue) DrainOne() {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	q.mu.Unlock()

	entry.tries++
	switch entry.action.Run() {
	case Done:
	case GiveUp:
		q.log.Debug().Int("tries", entry.tries).Msg("action gave up")
	case Retry:
		if entry.tries >= maxTries {
			q.log.Warn().Int("tries", entry.tries).Msg("too many retries, skipping action")
			metrics.QueueActionsSkipped.Inc()
			return
		}
		q.mu.Lock()
		if q.mode == RetryInPlace {
			q.entries = append([]retryEntry{entry}, q.entries...)
		} else {
			q.entries = append(q.entries, entry)
		}
		q.mu.Unlock()
	}
}
