package storage

import (
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const updateBufferSize = 255

// StateStore keeps the telemetry document in memory as raw JSON bytes,
// maintained with sjson/gjson so readers get the whole document without any
// marshalling step.
type StateStore struct {
	mu          sync.Mutex
	doc         []byte
	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewStateStore() *StateStore {
	return &StateStore{
		doc:  []byte(`{}`),
		stop: make(chan struct{}),
	}
}

func (s *StateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning() {
		close(s.stop)

		for _, updateChan := range s.updateChans {
			close(updateChan)
		}
		s.updateChans = nil
	}

	return nil
}

func (s *StateStore) Set(key string, value interface{}) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc, err = sjson.SetBytes(s.doc, key, value)
	if err != nil {
		return err
	}

	if s.isRunning() {
		update := &Update{
			Key:   key,
			Value: []byte(gjson.GetBytes(s.doc, key).Raw),
		}

		for _, updateChan := range s.updateChans {
			// The engine writes from its receive loop; a listener that has
			// stopped draining loses updates rather than stalling ingestion.
			select {
			case updateChan <- update:
			default:
			}
		}
	}

	return nil
}

func (s *StateStore) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := gjson.GetBytes(s.doc, key)
	if result.Index > 0 {
		return s.doc[result.Index : result.Index+len(result.Raw)]
	}
	return []byte(result.Raw)
}

func (s *StateStore) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]byte, len(s.doc))
	copy(snapshot, s.doc)
	return snapshot
}

func (s *StateStore) ListenToUpdates() <-chan *Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	updateChan := make(chan *Update, updateBufferSize)
	s.updateChans = append(s.updateChans, updateChan)
	return updateChan
}

// isRunning returns true if Close has not been called. Callers hold s.mu.
func (s *StateStore) isRunning() bool {
	select {
	case <-s.stop:
		return false
	default:
		return true
	}
}
