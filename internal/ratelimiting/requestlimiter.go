package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// RequestLimiter bounds the number of operations started within a sliding
// window. The upstream adapter uses it to stay inside the upstream's
// request budget.
type RequestLimiter interface {
	// Limit runs operation once a slot within the window is available.
	// It returns false without running the operation if ctx is done first,
	// or if the wait plus maxOperationTime would overrun ctx's deadline.
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool
}

type windowLimitRequestLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	availableSlots chan struct{}
	history        []time.Time
	mutex          sync.Mutex
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimitRequestLimiter {
	availableSlots := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		availableSlots <- struct{}{}
	}

	// Seed the history with timestamps outside the window so the first
	// requests proceed without waiting.
	history := make([]time.Time, limit)
	veryOldTime := nowFunc().Add(-window)
	for i := 0; i < limit; i++ {
		history[i] = veryOldTime
	}

	return &windowLimitRequestLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		availableSlots: availableSlots,
		history:        history,
	}
}

func (l *windowLimitRequestLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	select {
	case <-l.availableSlots:
		defer func() {
			l.availableSlots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldestFinished, ok := l.grabOldestFinished(ctx, maxOperationTime)
	if !ok {
		return false
	}

	// The grabbed timestamp must be replaced when we return. If the
	// operation ran, the replacement is its finish time; otherwise the
	// original timestamp is reinserted.
	reinsert := oldestFinished
	defer func() {
		l.insertFinished(reinsert)
	}()

	if wait := l.remainingWindow(oldestFinished); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation()
	reinsert = l.nowFunc()
	return true
}

// remainingWindow returns how long until finished leaves the window.
func (l *windowLimitRequestLimiter) remainingWindow(finished time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(finished)
}

func (l *windowLimitRequestLimiter) insertFinished(finished time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	i, _ := slices.BinarySearchFunc(l.history, finished, func(a, b time.Time) int {
		return a.Compare(b)
	})
	l.history = slices.Insert(l.history, i, finished)
}

func (l *windowLimitRequestLimiter) grabOldestFinished(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldest := l.history[0]

	if deadline, ok := ctx.Deadline(); ok {
		wait := l.remainingWindow(oldest)
		if wait < 0 {
			wait = 0
		}
		untilDeadline := deadline.Sub(l.nowFunc())
		if wait+maxOperationTime > untilDeadline {
			return time.Time{}, false
		}
	}

	l.history = l.history[1:]
	return oldest, true
}
