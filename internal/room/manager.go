package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/starspacegroup/starspace-server/internal/game"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Manager owns the live rooms of one process. Rooms share nothing with each
// other; the manager only routes joins and prunes drained rooms.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room
	cfg   game.Config
	deps  Deps
	rng   *rand.Rand
}

// NewManager creates a manager spawning rooms with the given config and
// dependencies.
func NewManager(cfg game.Config, deps Deps) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		cfg:   cfg.Normalized(),
		deps:  deps,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetOrCreate returns the room with the given code, creating and starting
// it on first reference. An empty code allocates a fresh room.
func (m *Manager) GetOrCreate(code string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code == "" {
		code = m.newCodeLocked()
	}
	if r, ok := m.rooms[code]; ok {
		return r
	}
	r := New(code, m.cfg, m.deps)
	m.rooms[code] = r
	go r.Run()
	return r
}

// Lookup returns an existing room without creating one.
func (m *Manager) Lookup(code string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	return r, ok
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Shutdown terminates every room, checkpointing in-progress ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Terminate()
	}
}

// Prune terminates and forgets rooms that ended with no sessions left.
func (m *Manager) Prune() {
	m.mu.Lock()
	var idle []*Room
	for code, r := range m.rooms {
		if r.Idle() {
			idle = append(idle, r)
			delete(m.rooms, code)
		}
	}
	m.mu.Unlock()

	for _, r := range idle {
		r.Terminate()
	}
}

// Remove terminates and forgets one room.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	r, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if ok {
		r.Terminate()
	}
}

func (m *Manager) newCodeLocked() string {
	for {
		buf := make([]byte, 6)
		for i := range buf {
			buf[i] = roomCodeAlphabet[m.rng.Intn(len(roomCodeAlphabet))]
		}
		code := string(buf)
		if _, taken := m.rooms[code]; !taken {
			return code
		}
	}
}
