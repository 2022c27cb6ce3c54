package coalescing

// Observer receives group lifecycle events. The callback runs on the
// group's run loop, so implementations must not block.
type Observer[K comparable] interface {
	On(data EventData[K])
}

// Event represents a group event type.
type Event int

const (
	// EventMiss is emitted when a call starts a new execution.
	EventMiss Event = iota
	// EventCoalesced is emitted when a call joins an in-flight execution.
	EventCoalesced
	// EventHit is emitted when a call is served from cache.
	EventHit
	// EventExpired is emitted when a cached entry is removed by its TTL.
	EventExpired
	// EventInvalidated is emitted when a cached entry is removed by Expire.
	EventInvalidated
	// EventFailed is emitted when an execution fails and its waiters
	// receive a ComputationError.
	EventFailed
)

// EventData carries the details of a group event.
type EventData[K comparable] struct {
	Event Event
	Key   K
}

// Option configures a Group created by New.
type Option[K comparable, V any] func(*Group[K, V])

// WithObserver attaches an Observer for the lifetime of the group.
func WithObserver[K comparable, V any](observer Observer[K]) Option[K, V] {
	return func(group *Group[K, V]) {
		group.observer = observer
	}
}
