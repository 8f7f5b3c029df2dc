package vpn

import (
	"sync"
	"time"

	"github.com/apex/log"
)

// ConnectionState records the server and protocol of the most recent generation attempt.
type ConnectionState struct {
	ServerName string    `json:"servername"`
	Protocol   Protocol  `json:"protocol"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StateStore persists ConnectionState across restarts. Last write wins.
type StateStore interface {
	SaveState(state ConnectionState) error
	LoadState() (ConnectionState, bool, error)
}

// Recorder owns the ConnectionState of one Manager.
type Recorder struct {
	mu    sync.RWMutex
	state ConnectionState
	store StateStore
	now   func() time.Time
	log   log.Interface
}

// NewRecorder creates a recorder. When store is non-nil the previously saved state
// is loaded and every write is persisted.
func NewRecorder(store StateStore, logger log.Interface) *Recorder {
	if logger == nil {
		logger = log.Log
	}
	r := &Recorder{store: store, now: time.Now, log: logger}
	if store != nil {
		state, ok, err := store.LoadState()
		if err != nil {
			logger.WithError(err).Warn("failed to load connection state")
		} else if ok {
			r.state = state
		}
	}
	return r
}

// RecordServer stores name as the last used server.
func (r *Recorder) RecordServer(name string) {
	r.update(func(s *ConnectionState) { s.ServerName = name })
}

// RecordProtocol stores p as the last used protocol.
func (r *Recorder) RecordProtocol(p Protocol) {
	r.update(func(s *ConnectionState) { s.Protocol = p })
}

// Current returns a copy of the recorded state.
func (r *Recorder) Current() ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Recorder) update(mutate func(*ConnectionState)) {
	r.mu.Lock()
	mutate(&r.state)
	r.state.UpdatedAt = r.now().UTC()
	snapshot := r.state
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.SaveState(snapshot); err != nil {
		r.log.WithError(err).Warn("failed to persist connection state")
	}
}
