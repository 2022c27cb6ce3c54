package coalescing

import (
	"runtime/debug"

	"github.com/google/uuid"
)

// execute runs the handler for key in its own goroutine and reports the
// result back to the run loop. The handle correlates the notification with
// the pending entry that spawned it; if that entry is gone by the time the
// notification arrives, the run loop discards it.
func (g *Group[K, V]) execute(handle uuid.UUID, key K) {
	result, err := g.runHandler(key)
	if err != nil {
		g.post(message[K, V]{kind: msgFailed, handle: handle, cause: err})
		return
	}
	g.post(message[K, V]{kind: msgSucceeded, handle: handle, result: result})
}

// runHandler invokes the handler with panics converted to errors, so a
// crashing handler is failure data to the run loop rather than a crash of
// the whole group.
func (g *Group[K, V]) runHandler(key K) (result V, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered, Stack: debug.Stack()}
		}
	}()

	return g.handler(g.baseCtx, key)
}
