package storage

// Store is the session's telemetry document: a single JSON value the engine
// writes dotted-path keys into and surfaces (dashboards, the HTTP status
// endpoint) read back out of.
type Store interface {
	Set(key string, value interface{}) error
	Get(key string) []byte

	// Snapshot returns a copy of the whole document.
	Snapshot() []byte

	ListenToUpdates() <-chan *Update

	Close() error
}

// Update notifies a listener that one key of the document changed.
type Update struct {
	Key   string
	Value []byte
}
