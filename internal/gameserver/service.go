// Package gameserver implements the game's logical operations on top of the
// room registry, the round engine and the session registry.
//
// Every mutating operation follows the same sequence: take the room registry
// lock, mutate, copy a snapshot, release the lock, update the session cache,
// then fan out. The two registry locks are never held together.
package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/game/room"
	"github.com/cory-johannsen/hilo/internal/game/round"
	"github.com/cory-johannsen/hilo/internal/game/session"
)

// CreateRoomRequest carries create_room inputs.
type CreateRoomRequest struct {
	RoomName   string
	PlayerName string
	MaxRounds  int
	Endless    bool
}

// Stats is a point-in-time count of registry occupancy.
type Stats struct {
	Sessions  int `json:"sessions"`
	Connected int `json:"connected"`
	Rooms     int `json:"rooms"`
}

// GameService is the orchestration layer behind the HTTP frontend.
// All methods are safe for concurrent use.
type GameService struct {
	rooms             *room.Registry
	sessions          *session.Manager
	engine            *round.Engine
	leaveOnDisconnect bool
	logger            *zap.Logger
}

// NewGameService creates a GameService. When leaveOnDisconnect is set, a room
// member whose push channel is torn down leaves the room implicitly.
//
// Precondition: rooms, sessions, engine and logger must be non-nil.
// Postcondition: Returns a GameService registered as sessions' detach handler.
func NewGameService(
	rooms *room.Registry,
	sessions *session.Manager,
	engine *round.Engine,
	leaveOnDisconnect bool,
	logger *zap.Logger,
) *GameService {
	s := &GameService{
		rooms:             rooms,
		sessions:          sessions,
		engine:            engine,
		leaveOnDisconnect: leaveOnDisconnect,
		logger:            logger,
	}
	sessions.OnDetach(s.handleDetach)
	return s
}

// Subscribe opens a push stream. A non-zero resume id of a registered session
// rebinds that session's channel, keeping its room; otherwise a new session is
// opened. The connected event is already queued on the returned channel.
//
// Postcondition: Returns the session id and its channel, or session.ErrRegistryFull.
func (s *GameService) Subscribe(resume int64) (int64, *session.PushChannel, error) {
	var (
		id      int64
		ch      *session.PushChannel
		err     error
		resumed bool
	)
	if resume != 0 {
		ch, err = s.sessions.Bind(resume)
		id, resumed = resume, err == nil
	}
	if !resumed {
		id, ch, err = s.sessions.Open()
	}
	if err != nil {
		return 0, nil, fmt.Errorf("subscribing: %w", err)
	}

	data, err := json.Marshal(ConnectedEvent{Message: msgConnected, SessionID: id})
	if err != nil {
		return 0, nil, fmt.Errorf("encoding connected event: %w", err)
	}
	if err := ch.Push(data); err != nil {
		s.logger.Debug("connected event not queued", zap.Int64("session_id", id), zap.Error(err))
	}

	s.logger.Info("push stream subscribed", zap.Int64("session_id", id), zap.Bool("resumed", resumed))
	return id, ch, nil
}

// Unsubscribe detaches ch after its transport ends.
func (s *GameService) Unsubscribe(id int64, ch *session.PushChannel) {
	s.sessions.Unbind(id, ch)
}

// ListRooms returns the joinable rooms.
func (s *GameService) ListRooms() RoomListResponse {
	return RoomListResponse{Action: ActionRoomList, Rooms: s.rooms.ListJoinable()}
}

// CreateRoom opens a room hosted by sid.
//
// Postcondition: Returns room_created, or ErrNoSessionID / room.ErrAlreadyInRoom / room.ErrRegistryFull.
func (s *GameService) CreateRoom(sid int64, req CreateRoomRequest) (RoomEvent, error) {
	if sid == 0 {
		return RoomEvent{}, ErrNoSessionID
	}
	snap, err := s.rooms.Create(room.CreateRequest{
		SessionID:  sid,
		RoomName:   req.RoomName,
		PlayerName: req.PlayerName,
		MaxRounds:  req.MaxRounds,
		Endless:    req.Endless,
	})
	if err != nil {
		return RoomEvent{}, err
	}
	s.sessions.SetRoom(sid, snap.ID, snap.Players[0].Name)
	return RoomEvent{Action: ActionRoomCreated, Room: snap}, nil
}

// JoinRoom adds sid to roomID and broadcasts player_joined to the room.
//
// Postcondition: Returns room_joined, or a caller error.
func (s *GameService) JoinRoom(sid, roomID int64, playerName string) (RoomEvent, error) {
	if sid == 0 {
		return RoomEvent{}, ErrNoSessionID
	}
	snap, err := s.rooms.Join(sid, roomID, playerName)
	if err != nil {
		return RoomEvent{}, err
	}
	s.sessions.SetRoom(sid, snap.ID, snap.Players[len(snap.Players)-1].Name)
	s.broadcast(snap.ID, RoomEvent{Action: ActionPlayerJoined, Room: snap})
	return RoomEvent{Action: ActionRoomJoined, Room: snap}, nil
}

// LeaveRoom removes sid from its room, broadcasting player_left when the room
// survives, and any round closure the departure completes.
//
// Postcondition: Returns room_left, or ErrNoSessionID / room.ErrNotInRoom.
func (s *GameService) LeaveRoom(sid int64) (RoomLeftResponse, error) {
	if sid == 0 {
		return RoomLeftResponse{}, ErrNoSessionID
	}
	var closure *round.Closure
	res, err := s.rooms.Leave(sid, func(rm *room.Room) {
		closure = s.engine.CloseIfComplete(rm)
	})
	if err != nil {
		return RoomLeftResponse{}, err
	}
	s.clearRoomCache(sid, res.RoomID)

	if res.Deleted {
		return RoomLeftResponse{Action: ActionRoomLeft, Message: msgRoomDeleted}, nil
	}
	s.broadcast(res.RoomID, RoomEvent{Action: ActionPlayerLeft, Room: res.Snapshot})
	s.broadcastClosure(res.RoomID, closure)
	return RoomLeftResponse{Action: ActionRoomLeft, Message: msgLeftRoom}, nil
}

// StartGame starts the host's room and broadcasts game_started to it.
//
// Postcondition: Returns game_started, or ErrNoSessionID / room.ErrNotInRoom /
// round.ErrNotHost / round.ErrGameAlreadyStarted.
func (s *GameService) StartGame(sid int64) (QuestionEvent, error) {
	if sid == 0 {
		return QuestionEvent{}, ErrNoSessionID
	}
	var res round.StartResult
	err := s.rooms.WithPlayer(sid, func(rm *room.Room, _ int) error {
		var err error
		res, err = s.engine.Start(rm, sid)
		return err
	})
	if err != nil {
		return QuestionEvent{}, err
	}
	evt := questionEvent(ActionGameStarted, res.Snapshot, res.Question)
	s.broadcast(res.Snapshot.ID, evt)
	return evt, nil
}

// SubmitChoice records sid's answer. The requester gets a private result; a
// completed round is broadcast as round_results followed by new_round or
// game_finished.
//
// Postcondition: Returns choice_result, or a caller error. A session outside
// any room gets round.ErrNoActiveGame.
func (s *GameService) SubmitChoice(sid int64, choice, responseTimeMs int) (ChoiceResultResponse, error) {
	if sid == 0 {
		return ChoiceResultResponse{}, ErrNoSessionID
	}
	var (
		res    round.SubmitResult
		roomID int64
	)
	err := s.rooms.WithPlayer(sid, func(rm *room.Room, idx int) error {
		var err error
		roomID = rm.ID
		res, err = s.engine.Submit(rm, idx, choice, responseTimeMs)
		return err
	})
	if errors.Is(err, room.ErrNotInRoom) {
		return ChoiceResultResponse{}, fmt.Errorf("session %d: %w", sid, round.ErrNoActiveGame)
	}
	if err != nil {
		return ChoiceResultResponse{}, err
	}

	s.broadcastClosure(roomID, res.Closure)
	return ChoiceResultResponse{
		Action:       ActionChoiceResult,
		Correct:      res.Choice.Correct,
		Score:        res.Choice.Score,
		Streak:       res.Choice.Streak,
		Message:      res.Choice.Message,
		ValueB:       res.Choice.ValueB,
		WaitingFor:   res.Choice.WaitingFor,
		ResponseTime: res.Choice.ResponseTime,
	}, nil
}

// RoomInfo returns sid's private view of its room.
//
// Postcondition: Returns in_room=false when sid occupies no room; ErrNoSessionID when sid is 0.
func (s *GameService) RoomInfo(sid int64) (RoomInfoResponse, error) {
	if sid == 0 {
		return RoomInfoResponse{}, ErrNoSessionID
	}
	var info round.Info
	err := s.rooms.WithPlayer(sid, func(rm *room.Room, idx int) error {
		info = s.engine.Info(rm, idx)
		return nil
	})
	if errors.Is(err, room.ErrNotInRoom) {
		return RoomInfoResponse{Action: ActionRoomInfo}, nil
	}
	if err != nil {
		return RoomInfoResponse{}, err
	}

	resp := RoomInfoResponse{
		Action:      ActionRoomInfo,
		InRoom:      true,
		IsHost:      info.IsHost,
		Room:        &info.Snapshot,
		Round:       info.Snapshot.CurrentRound,
		MyScore:     info.Score,
		MyStreak:    info.Streak,
		MyGameOver:  info.GameOver,
		HasAnswered: info.HasAnswered,
	}
	if q := info.Question; q != nil {
		valueA := q.ValueA
		resp.LabelA = q.LabelA
		resp.ValueA = &valueA
		resp.LabelB = q.LabelB
		resp.ImageA = q.ImageA
		resp.ImageB = q.ImageB
	}
	return resp, nil
}

// Stats reports registry occupancy.
func (s *GameService) Stats() Stats {
	return Stats{
		Sessions:  s.sessions.Count(),
		Connected: s.sessions.ConnectedCount(),
		Rooms:     s.rooms.ActiveCount(),
	}
}

// handleDetach runs when a room member loses its push channel.
func (s *GameService) handleDetach(sid, roomID int64) {
	if !s.leaveOnDisconnect {
		s.logger.Debug("room member detached, membership kept",
			zap.Int64("session_id", sid),
			zap.Int64("room_id", roomID),
		)
		return
	}
	if _, err := s.LeaveRoom(sid); err != nil && !errors.Is(err, room.ErrNotInRoom) {
		s.logger.Warn("implicit leave failed", zap.Int64("session_id", sid), zap.Error(err))
		return
	}
	s.logger.Info("room member left on disconnect", zap.Int64("session_id", sid), zap.Int64("room_id", roomID))
}

// clearRoomCache drops sid's cached room after it left roomID. A concurrent
// request may already have moved sid into another room, possibly one that
// reused roomID, so the cache is re-read from the room registry after clearing.
//
// Precondition: The room registry lock is not held.
func (s *GameService) clearRoomCache(sid, roomID int64) {
	if !s.sessions.ClearRoom(sid, roomID) {
		return
	}
	if snap, idx, ok := s.rooms.FindBySession(sid); ok {
		s.sessions.SetRoom(sid, snap.ID, snap.Players[idx].Name)
	}
}

// broadcastClosure fans out a completed round.
func (s *GameService) broadcastClosure(roomID int64, c *round.Closure) {
	if c == nil {
		return
	}
	s.broadcast(roomID, roundResultsEvent(c))
	if c.Finished {
		s.broadcast(roomID, RoomEvent{Action: ActionGameFinished, Room: c.Snapshot})
		return
	}
	s.broadcast(roomID, questionEvent(ActionNewRound, c.Snapshot, *c.Next))
}

// broadcast encodes evt once and pushes it to every session cached in roomID.
//
// Precondition: The room registry lock is not held.
func (s *GameService) broadcast(roomID int64, evt any) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("marshaling broadcast event", zap.Error(err))
		return
	}
	n := s.sessions.DeliverToRoom(roomID, data)
	s.logger.Debug("broadcast", zap.Int64("room_id", roomID), zap.Int("delivered", n))
}
