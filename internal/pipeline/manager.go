package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type procKey struct {
	roomID string
	userID uuid.UUID
}

// Manager owns the per-speaker processors. One processor exists per
// (user, room) pair; starting a second one for the same pair stops the
// first.
type Manager struct {
	mu    sync.Mutex
	procs map[procKey]*Processor
	deps  Deps
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		procs: make(map[procKey]*Processor),
		deps:  deps,
	}
}

// Start creates and starts a processor for the speaker, replacing any
// existing one for the same pair.
func (m *Manager) Start(ctx context.Context, roomID string, speakerID uuid.UUID, settings Settings, roster RosterFunc, delivery Delivery) *Processor {
	key := procKey{roomID: roomID, userID: speakerID}

	m.mu.Lock()
	old := m.procs[key]
	proc := NewProcessor(roomID, speakerID, settings, roster, delivery, m.deps)
	m.procs[key] = proc
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	proc.Start(ctx)
	return proc
}

// Get returns the speaker's processor, or nil.
func (m *Manager) Get(roomID string, speakerID uuid.UUID) *Processor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procs[procKey{roomID: roomID, userID: speakerID}]
}

// Stop halts and removes the speaker's processor. No-op when absent.
func (m *Manager) Stop(roomID string, speakerID uuid.UUID) {
	key := procKey{roomID: roomID, userID: speakerID}

	m.mu.Lock()
	proc := m.procs[key]
	delete(m.procs, key)
	m.mu.Unlock()

	if proc != nil {
		proc.Stop()
	}
}

// Release stops proc only while it is still the registered processor
// for the pair. After a replace-on-reconnect the older connection's
// teardown must not take down the replacement's processor.
func (m *Manager) Release(roomID string, speakerID uuid.UUID, proc *Processor) {
	if proc == nil {
		return
	}
	key := procKey{roomID: roomID, userID: speakerID}

	m.mu.Lock()
	if m.procs[key] != proc {
		m.mu.Unlock()
		return
	}
	delete(m.procs, key)
	m.mu.Unlock()

	proc.Stop()
}

// StopAll halts every processor, used during shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	procs := make([]*Processor, 0, len(m.procs))
	for _, proc := range m.procs {
		procs = append(procs, proc)
	}
	m.procs = make(map[procKey]*Processor)
	m.mu.Unlock()

	for _, proc := range procs {
		proc.Stop()
	}
}
