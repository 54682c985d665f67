package manager

// Event is one manager lifecycle notification. Names in use:
// ensure_start/ensure_ready/load_error, fetch_start/fetch_cached/fetch_done/
// fetch_error, reload_done/reload_error, unload_start/unload_timeout/
// unload_done, evicted. Fields carries event-specific key/values such as the
// validity window of a completed fetch.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
