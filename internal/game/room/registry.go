package room

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	// MaxPlayerNameLen is the longest stored player name, in runes.
	MaxPlayerNameLen = 31
	// MaxRoomNameLen is the longest stored room name, in runes.
	MaxRoomNameLen = 63
	// DefaultRoomName is used when a create request names no room.
	DefaultRoomName = "Game Room"
)

// Limits bounds the registry and the round counts it accepts.
type Limits struct {
	MaxRooms      int
	MaxPlayers    int
	MinRounds     int
	MaxRounds     int
	DefaultRounds int
	AllowEndless  bool
}

// CreateRequest carries the inputs of Create.
type CreateRequest struct {
	SessionID  int64
	RoomName   string
	PlayerName string
	MaxRounds  int
	Endless    bool
}

// LeaveResult describes the room a session left.
type LeaveResult struct {
	RoomID   int64
	Deleted  bool
	Snapshot Snapshot
	// NewHostSessionID is non-zero when the leaver was host and the role moved.
	NewHostSessionID int64
	// PlayerName is the leaver's display name.
	PlayerName string
}

// Registry is the fixed-capacity set of room slots. Every operation is
// serialized by one lock over the whole registry, so cross-room rules such as
// "a session is in at most one room" are checked atomically.
type Registry struct {
	mu       sync.Mutex
	slots    []Room
	nextID   int64
	released []int64
	limits   Limits
	logger   *zap.Logger
}

// NewRegistry creates a Registry with limits.MaxRooms empty slots.
//
// Precondition: limits.MaxRooms >= 1; logger must be non-nil.
func NewRegistry(limits Limits, logger *zap.Logger) *Registry {
	return &Registry{
		slots:  make([]Room, limits.MaxRooms),
		limits: limits,
		logger: logger,
	}
}

// ListJoinable returns the rooms that are waiting or playing, in slot order.
func (r *Registry) ListJoinable() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Summary, 0, len(r.slots))
	for i := range r.slots {
		rm := &r.slots[i]
		if rm.Status == StatusWaiting || rm.Status == StatusPlaying {
			out = append(out, rm.summary())
		}
	}
	return out
}

// ActiveCount returns the number of non-empty rooms.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.slots {
		if r.slots[i].Status != StatusEmpty {
			n++
		}
	}
	return n
}

// Create opens a room with the requester as sole player and host.
//
// Precondition: req.SessionID >= 1.
// Postcondition: Returns a waiting room snapshot, or ErrAlreadyInRoom / ErrRegistryFull.
func (r *Registry) Create(req CreateRequest) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, _ := r.findLocked(req.SessionID); rm != nil {
		return Snapshot{}, fmt.Errorf("session %d in room %d: %w", req.SessionID, rm.ID, ErrAlreadyInRoom)
	}

	slot := -1
	for i := range r.slots {
		if r.slots[i].Status == StatusEmpty {
			slot = i
			break
		}
	}
	if slot < 0 {
		return Snapshot{}, ErrRegistryFull
	}

	name := truncate(req.RoomName, MaxRoomNameLen)
	if name == "" {
		name = DefaultRoomName
	}
	r.slots[slot] = Room{
		ID:            r.allocateID(),
		Name:          name,
		HostSessionID: req.SessionID,
		Status:        StatusWaiting,
		Players: []Player{{
			SessionID: req.SessionID,
			Name:      PlayerName(req.SessionID, req.PlayerName),
			IsReady:   true,
		}},
		MaxPlayers: r.limits.MaxPlayers,
		MaxRounds:  r.clampRounds(req.MaxRounds, req.Endless),
	}
	rm := &r.slots[slot]

	r.logger.Info("room created",
		zap.Int64("room_id", rm.ID),
		zap.String("name", rm.Name),
		zap.Int64("session_id", req.SessionID),
		zap.Int("max_rounds", rm.MaxRounds),
	)
	return rm.Snapshot(), nil
}

// Join appends the session to a waiting room.
//
// Postcondition: Returns the updated snapshot, or ErrInvalidRoomID /
// ErrAlreadyInRoom / ErrRoomNotFound / ErrRoomNotWaiting / ErrRoomFull.
func (r *Registry) Join(sessionID, roomID int64, playerName string) (Snapshot, error) {
	if roomID == 0 {
		return Snapshot{}, ErrInvalidRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, _ := r.findLocked(sessionID); rm != nil {
		return Snapshot{}, fmt.Errorf("session %d in room %d: %w", sessionID, rm.ID, ErrAlreadyInRoom)
	}
	rm := r.byIDLocked(roomID)
	if rm == nil {
		return Snapshot{}, fmt.Errorf("room %d: %w", roomID, ErrRoomNotFound)
	}
	if rm.Status != StatusWaiting {
		return Snapshot{}, fmt.Errorf("room %d is %s: %w", roomID, rm.Status, ErrRoomNotWaiting)
	}
	if len(rm.Players) >= rm.MaxPlayers {
		return Snapshot{}, fmt.Errorf("room %d: %w", roomID, ErrRoomFull)
	}

	rm.Players = append(rm.Players, Player{
		SessionID: sessionID,
		Name:      PlayerName(sessionID, playerName),
	})
	r.logger.Info("player joined room",
		zap.Int64("room_id", roomID),
		zap.Int64("session_id", sessionID),
		zap.Int("player_count", len(rm.Players)),
	)
	return rm.Snapshot(), nil
}

// Leave removes the session from its room. If the room empties it returns to
// the empty state and its id is released. If the host left, the first
// remaining player becomes host and is marked ready. then, when non-nil, runs
// under the lock on a room that survives, before its snapshot is taken.
//
// Postcondition: Returns the outcome, or ErrNotInRoom.
func (r *Registry) Leave(sessionID int64, then func(rm *Room)) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, idx := r.findLocked(sessionID)
	if rm == nil {
		return LeaveResult{}, fmt.Errorf("session %d: %w", sessionID, ErrNotInRoom)
	}

	res := LeaveResult{RoomID: rm.ID, PlayerName: rm.Players[idx].Name}
	rm.Players = append(rm.Players[:idx], rm.Players[idx+1:]...)

	if len(rm.Players) == 0 {
		r.releaseID(rm.ID)
		*rm = Room{}
		res.Deleted = true
		r.logger.Info("room deleted", zap.Int64("room_id", res.RoomID), zap.Int64("session_id", sessionID))
		return res, nil
	}

	if rm.HostSessionID == sessionID {
		rm.HostSessionID = rm.Players[0].SessionID
		rm.Players[0].IsReady = true
		res.NewHostSessionID = rm.HostSessionID
		r.logger.Info("host transferred",
			zap.Int64("room_id", rm.ID),
			zap.Int64("session_id", rm.HostSessionID),
		)
	}
	if then != nil {
		then(rm)
	}
	res.Snapshot = rm.Snapshot()
	r.logger.Info("player left room",
		zap.Int64("room_id", rm.ID),
		zap.Int64("session_id", sessionID),
		zap.Int("player_count", len(rm.Players)),
	)
	return res, nil
}

// FindBySession returns a snapshot of the session's room and its player index.
//
// Postcondition: Returns (snapshot, index, true) if found, or (Snapshot{}, -1, false).
func (r *Registry) FindBySession(sessionID int64) (Snapshot, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, idx := r.findLocked(sessionID)
	if rm == nil {
		return Snapshot{}, -1, false
	}
	return rm.Snapshot(), idx, true
}

// WithPlayer runs fn under the registry lock on the session's room.
//
// Precondition: fn must not retain rm past its return or call back into r.
// Postcondition: Returns ErrNotInRoom if the session occupies no room, else fn's error.
func (r *Registry) WithPlayer(sessionID int64, fn func(rm *Room, playerIdx int) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, idx := r.findLocked(sessionID)
	if rm == nil {
		return fmt.Errorf("session %d: %w", sessionID, ErrNotInRoom)
	}
	return fn(rm, idx)
}

// findLocked returns the room holding sessionID and the player's index.
//
// Precondition: r.mu is held.
func (r *Registry) findLocked(sessionID int64) (*Room, int) {
	if sessionID == 0 {
		return nil, -1
	}
	for i := range r.slots {
		rm := &r.slots[i]
		if rm.Status == StatusEmpty {
			continue
		}
		if idx := rm.PlayerIndex(sessionID); idx >= 0 {
			return rm, idx
		}
	}
	return nil, -1
}

// byIDLocked returns the non-empty room with the given id.
//
// Precondition: r.mu is held.
func (r *Registry) byIDLocked(id int64) *Room {
	for i := range r.slots {
		if r.slots[i].Status != StatusEmpty && r.slots[i].ID == id {
			return &r.slots[i]
		}
	}
	return nil
}

// allocateID hands out the lowest released id, or the next fresh one.
//
// Precondition: r.mu is held.
func (r *Registry) allocateID() int64 {
	if len(r.released) > 0 {
		id := r.released[0]
		r.released = r.released[1:]
		return id
	}
	r.nextID++
	return r.nextID
}

// releaseID makes id available to allocateID.
//
// Precondition: r.mu is held and no non-empty room uses id.
func (r *Registry) releaseID(id int64) {
	r.released = append(r.released, id)
	sort.Slice(r.released, func(i, j int) bool { return r.released[i] < r.released[j] })
}

func (r *Registry) clampRounds(requested int, endless bool) int {
	if endless && r.limits.AllowEndless {
		return 0
	}
	switch {
	case requested < r.limits.MinRounds:
		return r.limits.DefaultRounds
	case requested > r.limits.MaxRounds:
		return r.limits.MaxRounds
	default:
		return requested
	}
}

// PlayerName returns the stored display name for a requested name.
//
// Postcondition: Returns at most MaxPlayerNameLen runes; an empty request
// yields "Player_<sessionID>".
func PlayerName(sessionID int64, requested string) string {
	name := truncate(requested, MaxPlayerNameLen)
	if name == "" {
		return fmt.Sprintf("Player_%d", sessionID)
	}
	return name
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
