package session

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrRegistryFull is returned by Open when every session slot is taken.
	ErrRegistryFull = errors.New("session registry full")
	// ErrUnknownSession is returned when a session id is not registered.
	ErrUnknownSession = errors.New("unknown session")
)

// Info is a copy of one session's registry state.
type Info struct {
	ID        int64
	RoomID    int64
	Name      string
	Connected bool
}

type entry struct {
	id     int64
	roomID int64
	name   string
	push   *PushChannel
}

// DetachFunc is called, outside the registry lock, when a session's active push
// channel is torn down while the session occupies a room.
type DetachFunc func(sessionID, roomID int64)

// Manager is the session registry. It maps session ids to push channels and
// caches each session's room so fan-out can filter without the room registry.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	nextID     int64
	sessions   map[int64]*entry
	capacity   int
	bufferSize int
	onDetach   DetachFunc
	logger     *zap.Logger
}

// NewManager creates an empty Manager.
//
// Precondition: capacity >= 1; logger must be non-nil.
// Postcondition: The first id handed out by Open is 1.
func NewManager(capacity, bufferSize int, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:   make(map[int64]*entry),
		capacity:   capacity,
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// OnDetach registers fn to be called when a room member loses its push channel.
//
// Precondition: Must be called before the Manager is shared between goroutines.
func (m *Manager) OnDetach(fn DetachFunc) {
	m.onDetach = fn
}

// Open allocates a new session with a fresh push channel.
//
// Postcondition: Returns a never-before-used id >= 1 and its channel, or ErrRegistryFull.
func (m *Manager) Open() (int64, *PushChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.capacity {
		return 0, nil, ErrRegistryFull
	}
	// Ids recorded by SetRoom for request-only clients are skipped.
	for {
		if m.nextID == math.MaxInt64 {
			return 0, nil, ErrRegistryFull
		}
		m.nextID++
		if _, taken := m.sessions[m.nextID]; !taken {
			break
		}
	}
	id := m.nextID
	ch := NewPushChannel(id, m.bufferSize)
	m.sessions[id] = &entry{id: id, push: ch}
	m.logger.Debug("session opened", zap.Int64("session_id", id))
	return id, ch, nil
}

// Bind attaches a fresh push channel to an existing session, closing any
// channel it replaces.
//
// Precondition: id must be a registered session.
// Postcondition: Returns the new channel, or ErrUnknownSession.
func (m *Manager) Bind(id int64) (*PushChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("binding session %d: %w", id, ErrUnknownSession)
	}
	if e.push != nil {
		e.push.Close()
	}
	e.push = NewPushChannel(id, m.bufferSize)
	m.logger.Debug("session rebound", zap.Int64("session_id", id), zap.Int64("room_id", e.roomID))
	return e.push, nil
}

// Unbind detaches ch from its session after a transport failure or disconnect.
// It is a no-op for a channel that has already been replaced. A session left
// with neither a channel nor a room is released.
func (m *Manager) Unbind(id int64, ch *PushChannel) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		ch.Close()
		return
	}
	detached := false
	if e.push == ch {
		e.push = nil
		detached = e.roomID != 0
	}
	ch.Close()
	roomID := e.roomID
	m.releaseIfIdle(e)
	m.mu.Unlock()

	m.logger.Debug("session unbound", zap.Int64("session_id", id), zap.Int64("room_id", roomID))
	if detached && m.onDetach != nil {
		m.onDetach(id, roomID)
	}
}

// SetRoom updates the cached room and display name of a session. A roomID of 0
// clears the room. An unregistered id is registered detached when roomID != 0
// and capacity allows, so request-only clients still receive room broadcasts
// once they subscribe. Recording an id never advances the id counter.
func (m *Manager) SetRoom(id, roomID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		if roomID == 0 || id <= 0 {
			return
		}
		if len(m.sessions) >= m.capacity {
			m.logger.Warn("session registry full, room cache not recorded",
				zap.Int64("session_id", id),
				zap.Int64("room_id", roomID),
			)
			return
		}
		e = &entry{id: id}
		m.sessions[id] = e
	}
	e.roomID = roomID
	e.name = name
	m.releaseIfIdle(e)
}

// ClearRoom clears the session's cached room only while it is still roomID,
// so a stale leave cannot detach the session from a room it joined since.
//
// Postcondition: Returns true if the cache was cleared.
func (m *Manager) ClearRoom(id, roomID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok || roomID == 0 || e.roomID != roomID {
		return false
	}
	e.roomID = 0
	e.name = ""
	m.releaseIfIdle(e)
	return true
}

// Lookup returns a copy of the session's state.
//
// Postcondition: Returns (info, true) if registered, or (Info{}, false) otherwise.
func (m *Manager) Lookup(id int64) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Info{}, false
	}
	return Info{ID: e.id, RoomID: e.roomID, Name: e.name, Connected: e.push != nil}, true
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ConnectedCount returns the number of sessions with an active push channel.
func (m *Manager) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.sessions {
		if e.push != nil {
			n++
		}
	}
	return n
}

// DeliverToSession pushes data to one session. A push that cannot complete
// immediately tears the channel down; the session's room membership is kept.
//
// Postcondition: Returns true if the event was enqueued.
func (m *Manager) DeliverToSession(id int64, data []byte) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok || e.push == nil {
		m.mu.Unlock()
		return false
	}
	delivered, detached := m.push(e, data)
	roomID := e.roomID
	m.mu.Unlock()

	if detached != 0 && m.onDetach != nil {
		m.onDetach(detached, roomID)
	}
	return delivered
}

// DeliverToRoom pushes data to every session whose cached room is roomID.
// Failures are per recipient and never stop the broadcast.
//
// Postcondition: Returns the number of sessions the event was enqueued for.
func (m *Manager) DeliverToRoom(roomID int64, data []byte) int {
	if roomID == 0 {
		return 0
	}
	m.mu.Lock()
	delivered := 0
	var detached []int64
	for _, e := range m.sessions {
		if e.roomID != roomID || e.push == nil {
			continue
		}
		ok, lost := m.push(e, data)
		if ok {
			delivered++
		}
		if lost != 0 {
			detached = append(detached, lost)
		}
	}
	m.mu.Unlock()

	if m.onDetach != nil {
		for _, id := range detached {
			m.onDetach(id, roomID)
		}
	}
	return delivered
}

// push enqueues onto e's channel and tears the channel down on failure. It
// returns the session id as lost when a room member was detached.
//
// Precondition: m.mu is held and e.push is non-nil.
func (m *Manager) push(e *entry, data []byte) (bool, int64) {
	if err := e.push.Push(data); err != nil {
		m.logger.Warn("push failed, closing channel",
			zap.Int64("session_id", e.id),
			zap.Int64("room_id", e.roomID),
			zap.Error(err),
		)
		e.push.Close()
		e.push = nil
		if e.roomID != 0 {
			return false, e.id
		}
		m.releaseIfIdle(e)
		return false, 0
	}
	return true, 0
}

// releaseIfIdle removes a session that has neither a channel nor a room.
//
// Precondition: m.mu is held.
func (m *Manager) releaseIfIdle(e *entry) {
	if e.push == nil && e.roomID == 0 {
		delete(m.sessions, e.id)
		m.logger.Debug("session released", zap.Int64("session_id", e.id))
	}
}
