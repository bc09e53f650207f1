// Package room holds game rooms and the registry that owns them.
package room

import "errors"

var (
	// ErrAlreadyInRoom is returned when a session already occupies a room.
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrRoomNotFound is returned when no room has the requested id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotWaiting is returned when joining a room that is not accepting players.
	ErrRoomNotWaiting = errors.New("room is not accepting players (game in progress)")
	// ErrRoomFull is returned when a room has reached its player capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrRegistryFull is returned when no room slot is free.
	ErrRegistryFull = errors.New("maximum number of rooms reached")
	// ErrNotInRoom is returned when a session occupies no room.
	ErrNotInRoom = errors.New("not in any room")
	// ErrInvalidRoomID is returned for a room id of 0.
	ErrInvalidRoomID = errors.New("invalid room id")
)

// Status is the lifecycle state of a room slot.
type Status int

const (
	StatusEmpty Status = iota
	StatusWaiting
	StatusPlaying
	StatusFinished
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "empty"
	}
}

// Player is a session's state within one room.
type Player struct {
	SessionID         int64
	Name              string
	Score             int
	Streak            int
	IsReady           bool
	GameOver          bool
	HasAnswered       bool
	LastAnswerCorrect bool
	ResponseTimeMs    int
}

// Room is one lobby and its round state. A zero Room is an empty slot.
//
// Rooms are only mutated while the owning Registry's lock is held.
type Room struct {
	ID            int64
	Name          string
	HostSessionID int64
	Status        Status
	Players       []Player
	MaxPlayers    int
	// MaxRounds of 0 means the game never finishes on its own.
	MaxRounds    int
	CurrentRound int
	ItemA        int
	ItemB        int
}

// IsHost reports whether sessionID hosts the room.
func (r *Room) IsHost(sessionID int64) bool {
	return r.Status != StatusEmpty && r.HostSessionID == sessionID
}

// PlayerIndex returns the index of sessionID in Players, or -1.
func (r *Room) PlayerIndex(sessionID int64) int {
	for i := range r.Players {
		if r.Players[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// AnsweredCount recounts the players who have answered the current round.
func (r *Room) AnsweredCount() int {
	n := 0
	for i := range r.Players {
		if r.Players[i].HasAnswered {
			n++
		}
	}
	return n
}

// AllAnswered reports whether every current player has answered. It is false
// for a room with no players.
func (r *Room) AllAnswered() bool {
	return len(r.Players) > 0 && r.AnsweredCount() == len(r.Players)
}

// PlayerSnapshot is the wire form of a Player.
type PlayerSnapshot struct {
	SessionID   int64  `json:"session_id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
	IsReady     bool   `json:"is_ready"`
	GameOver    bool   `json:"game_over"`
	HasAnswered bool   `json:"has_answered"`
	IsHost      bool   `json:"is_host"`
}

// Snapshot is a detached copy of a Room, safe to use after the lock is released.
type Snapshot struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	HostSessionID int64            `json:"host_session_id"`
	PlayerCount   int              `json:"player_count"`
	MaxPlayers    int              `json:"max_players"`
	MaxRounds     int              `json:"max_rounds"`
	Status        string           `json:"status"`
	CurrentRound  int              `json:"current_round"`
	Players       []PlayerSnapshot `json:"players"`
}

// Snapshot copies the room's shared state.
//
// Postcondition: The result shares no memory with r.
func (r *Room) Snapshot() Snapshot {
	players := make([]PlayerSnapshot, len(r.Players))
	for i, p := range r.Players {
		players[i] = PlayerSnapshot{
			SessionID:   p.SessionID,
			Name:        p.Name,
			Score:       p.Score,
			Streak:      p.Streak,
			IsReady:     p.IsReady,
			GameOver:    p.GameOver,
			HasAnswered: p.HasAnswered,
			IsHost:      p.SessionID == r.HostSessionID,
		}
	}
	return Snapshot{
		ID:            r.ID,
		Name:          r.Name,
		HostSessionID: r.HostSessionID,
		PlayerCount:   len(r.Players),
		MaxPlayers:    r.MaxPlayers,
		MaxRounds:     r.MaxRounds,
		Status:        r.Status.String(),
		CurrentRound:  r.CurrentRound,
		Players:       players,
	}
}

// Summary is the lobby-list form of a room.
type Summary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	Status      string `json:"status"`
}

func (r *Room) summary() Summary {
	return Summary{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(r.Players),
		MaxPlayers:  r.MaxPlayers,
		Status:      r.Status.String(),
	}
}
