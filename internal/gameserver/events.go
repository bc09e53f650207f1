package gameserver

import (
	"encoding/json"

	"github.com/cory-johannsen/hilo/internal/game/room"
	"github.com/cory-johannsen/hilo/internal/game/round"
)

// Action names carried in the "action" field of every payload.
const (
	ActionRoomList     = "room_list"
	ActionRoomCreated  = "room_created"
	ActionRoomJoined   = "room_joined"
	ActionPlayerJoined = "player_joined"
	ActionRoomLeft     = "room_left"
	ActionPlayerLeft   = "player_left"
	ActionGameStarted  = "game_started"
	ActionChoiceResult = "choice_result"
	ActionRoundResults = "round_results"
	ActionNewRound     = "new_round"
	ActionGameFinished = "game_finished"
	ActionRoomInfo     = "room_info"
)

const (
	msgConnected   = "Connected to SSE stream"
	msgRoomDeleted = "Room deleted (empty)"
	msgLeftRoom    = "Left room successfully"
)

// ConnectedEvent is the first event on every push stream.
type ConnectedEvent struct {
	Message   string `json:"message"`
	SessionID int64  `json:"session_id"`
}

// RoomListResponse answers list_rooms.
type RoomListResponse struct {
	Action string         `json:"action"`
	Rooms  []room.Summary `json:"rooms"`
}

// RoomEvent carries a room snapshot: room_created, room_joined,
// player_joined, player_left and game_finished.
type RoomEvent struct {
	Action string        `json:"action"`
	Room   room.Snapshot `json:"room"`
}

// RoomLeftResponse answers leave_room.
type RoomLeftResponse struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// QuestionEvent announces a question: game_started and new_round.
type QuestionEvent struct {
	Action string        `json:"action"`
	Room   room.Snapshot `json:"room"`
	Round  int           `json:"round"`
	LabelA string        `json:"labelA"`
	ValueA int           `json:"valueA"`
	LabelB string        `json:"labelB"`
	ImageA string        `json:"imageA,omitempty"`
	ImageB string        `json:"imageB,omitempty"`
}

// ChoiceResultResponse is the private answer to submit_choice.
type ChoiceResultResponse struct {
	Action       string `json:"action"`
	Correct      bool   `json:"correct"`
	Score        int    `json:"score"`
	Streak       int    `json:"streak"`
	Message      string `json:"message"`
	ValueB       int    `json:"valueB"`
	WaitingFor   int    `json:"waiting_for"`
	ResponseTime int    `json:"response_time"`
}

// PlayerResult is one line of a round summary.
type PlayerResult struct {
	SessionID    int64  `json:"session_id"`
	Name         string `json:"name"`
	Correct      bool   `json:"correct"`
	Score        int    `json:"score"`
	Streak       int    `json:"streak"`
	ResponseTime int    `json:"response_time"`
}

// RoundResultsEvent is broadcast when every player has answered a round.
type RoundResultsEvent struct {
	Action  string         `json:"action"`
	Round   int            `json:"round"`
	ValueB  int            `json:"valueB"`
	LabelB  string         `json:"labelB"`
	Results []PlayerResult `json:"results"`
}

// RoomInfoResponse answers room_info. A session outside any room encodes as
// {"action":"room_info","in_room":false}; the question fields are omitted
// before the first start.
type RoomInfoResponse struct {
	Action      string         `json:"action"`
	InRoom      bool           `json:"in_room"`
	IsHost      bool           `json:"is_host"`
	Room        *room.Snapshot `json:"room"`
	Round       int            `json:"round"`
	MyScore     int            `json:"my_score"`
	MyStreak    int            `json:"my_streak"`
	MyGameOver  bool           `json:"my_game_over"`
	HasAnswered bool           `json:"has_answered"`
	LabelA      string         `json:"labelA,omitempty"`
	ValueA      *int           `json:"valueA,omitempty"`
	LabelB      string         `json:"labelB,omitempty"`
	ImageA      string         `json:"imageA,omitempty"`
	ImageB      string         `json:"imageB,omitempty"`
}

// MarshalJSON drops every field but action and in_room when not in a room.
func (r RoomInfoResponse) MarshalJSON() ([]byte, error) {
	if !r.InRoom {
		return json.Marshal(struct {
			Action string `json:"action"`
			InRoom bool   `json:"in_room"`
		}{r.Action, false})
	}
	type plain RoomInfoResponse
	return json.Marshal(plain(r))
}

func questionEvent(action string, snap room.Snapshot, q round.Question) QuestionEvent {
	return QuestionEvent{
		Action: action,
		Room:   snap,
		Round:  q.Round,
		LabelA: q.LabelA,
		ValueA: q.ValueA,
		LabelB: q.LabelB,
		ImageA: q.ImageA,
		ImageB: q.ImageB,
	}
}

func roundResultsEvent(c *round.Closure) RoundResultsEvent {
	results := make([]PlayerResult, len(c.Results))
	for i, r := range c.Results {
		results[i] = PlayerResult{
			SessionID:    r.SessionID,
			Name:         r.Name,
			Correct:      r.Correct,
			Score:        r.Score,
			Streak:       r.Streak,
			ResponseTime: r.ResponseTime,
		}
	}
	return RoundResultsEvent{
		Action:  ActionRoundResults,
		Round:   c.Round,
		ValueB:  c.ValueB,
		LabelB:  c.LabelB,
		Results: results,
	}
}
