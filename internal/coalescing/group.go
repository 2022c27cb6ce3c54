// Package coalescing merges concurrent requests for the same key into a
// single execution and caches the result for a policy-determined TTL.
//
// A Group owns all per-key state and processes every state transition on a
// single goroutine, so two callers can never independently decide to start
// a computation for the same key. Handlers run in their own goroutines and
// report back by message; a slow or failing handler never blocks the group.
package coalescing

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler computes the result for a key. It may be slow and it may fail.
// It is invoked at most once per coalescing cycle for a given key.
type Handler[K comparable, V any] func(ctx context.Context, key K) (V, error)

// TTLOf returns how long a just-computed result should stay cached.
// A duration <= 0 disables caching for that result: the current waiters
// still receive it, but the next call triggers a fresh execution.
// NeverExpires caches the result until it is explicitly invalidated.
type TTLOf[V any] func(result V) time.Duration

// NeverExpires disables expiry for a result. The entry is removed only by
// an explicit Expire call.
const NeverExpires = time.Duration(math.MaxInt64)

// ErrStopped is returned by Call and Expire after the group has been stopped.
var ErrStopped = errors.New("coalescing group stopped")

type outcome[V any] struct {
	result V
	err    error
}

type msgKind int

const (
	msgRequest msgKind = iota
	msgSucceeded
	msgFailed
	msgExpired
	msgInvalidate
)

type message[K comparable, V any] struct {
	kind    msgKind
	key     K
	replyTo chan outcome[V]
	handle  uuid.UUID
	result  V
	cause   error
	ack     chan struct{}
}

// entry is the per-key state. pending and cached forms are mutually
// exclusive: an entry is pending until its execution resolves, after which
// it is either cached or removed from the map entirely.
type entry[V any] struct {
	pending bool

	// pending form
	handle  uuid.UUID
	waiters []chan outcome[V]

	// cached form
	result V
	timer  *time.Timer // nil for entries that never expire
}

// Group coalesces concurrent calls per key and caches results.
// The zero value is not usable; construct with New.
type Group[K comparable, V any] struct {
	handler  Handler[K, V]
	ttlOf    TTLOf[V]
	observer Observer[K]

	inbox chan message[K, V]
	done  chan struct{}
	stop  sync.Once

	baseCtx context.Context
	cancel  context.CancelFunc

	// Owned exclusively by the run loop.
	entries     map[K]*entry[V]
	keyByHandle map[uuid.UUID]K
}

// New creates a Group and starts its run loop. Stop must be called to
// release it.
func New[K comparable, V any](handler Handler[K, V], ttlOf TTLOf[V], options ...Option[K, V]) *Group[K, V] {
	baseCtx, cancel := context.WithCancel(context.Background())

	group := &Group[K, V]{
		handler: handler,
		ttlOf:   ttlOf,

		inbox: make(chan message[K, V]),
		done:  make(chan struct{}),

		baseCtx: baseCtx,
		cancel:  cancel,

		entries:     make(map[K]*entry[V]),
		keyByHandle: make(map[uuid.UUID]K),
	}

	for _, option := range options {
		option(group)
	}

	go group.run()

	return group
}

// Call returns the result for key, coalescing with any in-flight execution
// and serving from cache when a live entry exists. It blocks until the
// result is available or ctx is done. A caller that gives up early has no
// effect on the shared execution: it keeps running and its result is still
// delivered to the remaining waiters.
func (g *Group[K, V]) Call(ctx context.Context, key K) (V, error) {
	var zero V

	// Buffered so the run loop can always reply without blocking, even if
	// this caller has already timed out and left.
	replyTo := make(chan outcome[V], 1)

	select {
	case g.inbox <- message[K, V]{kind: msgRequest, key: key, replyTo: replyTo}:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-g.done:
		return zero, ErrStopped
	}

	select {
	case out := <-replyTo:
		return out.result, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-g.done:
		// A reply may have been delivered concurrently with shutdown.
		select {
		case out := <-replyTo:
			return out.result, out.err
		default:
		}
		return zero, ErrStopped
	}
}

// Expire removes any cached entry for key and cancels its expiry timer.
// In-flight executions are never cancelled. Expiring an absent or pending
// key is a no-op that still succeeds.
func (g *Group[K, V]) Expire(ctx context.Context, key K) error {
	ack := make(chan struct{})

	select {
	case g.inbox <- message[K, V]{kind: msgInvalidate, key: key, ack: ack}:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrStopped
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrStopped
	}
}

// Stop shuts down the group. Waiters blocked in Call receive ErrStopped,
// expiry timers are cancelled, and notifications from still-running
// handlers are discarded. Stop is idempotent.
func (g *Group[K, V]) Stop() {
	g.stop.Do(func() {
		g.cancel()
		close(g.done)
	})
}

func (g *Group[K, V]) run() {
	for {
		select {
		case msg := <-g.inbox:
			g.dispatch(msg)
		case <-g.done:
			g.shutdown()
			return
		}
	}
}

func (g *Group[K, V]) dispatch(msg message[K, V]) {
	switch msg.kind {
	case msgRequest:
		g.handleRequest(msg.key, msg.replyTo)
	case msgSucceeded:
		g.handleSucceeded(msg.handle, msg.result)
	case msgFailed:
		g.handleFailed(msg.handle, msg.cause)
	case msgExpired:
		g.handleExpired(msg.key)
	case msgInvalidate:
		g.handleInvalidate(msg.key, msg.ack)
	}
}

func (g *Group[K, V]) handleRequest(key K, replyTo chan outcome[V]) {
	ent, ok := g.entries[key]
	if !ok {
		handle := uuid.New()
		g.entries[key] = &entry[V]{
			pending: true,
			handle:  handle,
			waiters: []chan outcome[V]{replyTo},
		}
		g.keyByHandle[handle] = key
		g.emit(EventMiss, key)
		go g.execute(handle, key)
		return
	}

	if ent.pending {
		ent.waiters = append(ent.waiters, replyTo)
		g.emit(EventCoalesced, key)
		return
	}

	g.emit(EventHit, key)
	replyTo <- outcome[V]{result: ent.result}
}

func (g *Group[K, V]) handleSucceeded(handle uuid.UUID, result V) {
	key, ok := g.keyByHandle[handle]
	if !ok {
		// Stale notification: the entry behind this execution is gone.
		return
	}
	delete(g.keyByHandle, handle)

	ent := g.entries[key]
	waiters := ent.waiters

	ttl := g.ttlOf(result)
	if ttl <= 0 {
		delete(g.entries, key)
	} else {
		ent.pending = false
		ent.handle = uuid.Nil
		ent.waiters = nil
		ent.result = result
		if ttl != NeverExpires {
			ent.timer = time.AfterFunc(ttl, func() {
				g.post(message[K, V]{kind: msgExpired, key: key})
			})
		}
	}

	for _, waiter := range waiters {
		waiter <- outcome[V]{result: result}
	}
}

func (g *Group[K, V]) handleFailed(handle uuid.UUID, cause error) {
	key, ok := g.keyByHandle[handle]
	if !ok {
		return
	}
	delete(g.keyByHandle, handle)

	ent := g.entries[key]
	waiters := ent.waiters

	// Failures are never cached.
	delete(g.entries, key)
	g.emit(EventFailed, key)

	err := &ComputationError{Key: key, Cause: cause}
	for _, waiter := range waiters {
		waiter <- outcome[V]{err: err}
	}
}

func (g *Group[K, V]) handleExpired(key K) {
	ent, ok := g.entries[key]
	if !ok || ent.pending {
		// The cached value behind this timer was already superseded or
		// invalidated.
		return
	}

	delete(g.entries, key)
	g.emit(EventExpired, key)
}

func (g *Group[K, V]) handleInvalidate(key K, ack chan struct{}) {
	defer close(ack)

	ent, ok := g.entries[key]
	if !ok || ent.pending {
		return
	}

	if ent.timer != nil {
		ent.timer.Stop()
	}
	delete(g.entries, key)
	g.emit(EventInvalidated, key)
}

func (g *Group[K, V]) shutdown() {
	for _, ent := range g.entries {
		if ent.pending {
			for _, waiter := range ent.waiters {
				waiter <- outcome[V]{err: ErrStopped}
			}
		} else if ent.timer != nil {
			ent.timer.Stop()
		}
	}
	g.entries = nil
	g.keyByHandle = nil
}

// post delivers a notification to the run loop, dropping it if the group
// has been stopped.
func (g *Group[K, V]) post(msg message[K, V]) {
	select {
	case g.inbox <- msg:
	case <-g.done:
	}
}

func (g *Group[K, V]) emit(event Event, key K) {
	recordEvent(g.baseCtx, event)
	if g.observer != nil {
		g.observer.On(EventData[K]{Event: event, Key: key})
	}
}
