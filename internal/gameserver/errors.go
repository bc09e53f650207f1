package gameserver

import (
	"errors"

	"github.com/cory-johannsen/hilo/internal/game/room"
	"github.com/cory-johannsen/hilo/internal/game/round"
	"github.com/cory-johannsen/hilo/internal/game/session"
)

var (
	// ErrNoSessionID is returned when a request carries no session id.
	ErrNoSessionID = errors.New("missing session id")
	// ErrInvalidInput is returned for a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")
)

// Code is the stable machine-readable name of a caller error.
type Code string

const (
	CodeNoSessionID        Code = "no_session_id"
	CodeAlreadyInRoom      Code = "already_in_room"
	CodeRoomNotFound       Code = "room_not_found"
	CodeRoomNotWaiting     Code = "room_not_waiting"
	CodeRoomFull           Code = "room_full"
	CodeNotHost            Code = "not_host"
	CodeGameAlreadyStarted Code = "game_already_started"
	CodeNotInRoom          Code = "not_in_room"
	CodeNoActiveGame       Code = "no_active_game"
	CodeAlreadyAnswered    Code = "already_answered"
	CodePlayerGameOver     Code = "player_game_over"
	CodeRegistryFull       Code = "registry_full"
	CodeInvalidInput       Code = "invalid_input"
	CodeInternal           Code = "internal"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrNoSessionID, CodeNoSessionID},
	{ErrInvalidInput, CodeInvalidInput},
	{room.ErrInvalidRoomID, CodeInvalidInput},
	{round.ErrInvalidChoice, CodeInvalidInput},
	{room.ErrAlreadyInRoom, CodeAlreadyInRoom},
	{room.ErrRoomNotFound, CodeRoomNotFound},
	{room.ErrRoomNotWaiting, CodeRoomNotWaiting},
	{room.ErrRoomFull, CodeRoomFull},
	{room.ErrRegistryFull, CodeRegistryFull},
	{session.ErrRegistryFull, CodeRegistryFull},
	{room.ErrNotInRoom, CodeNotInRoom},
	{round.ErrNotHost, CodeNotHost},
	{round.ErrGameAlreadyStarted, CodeGameAlreadyStarted},
	{round.ErrNoActiveGame, CodeNoActiveGame},
	{round.ErrAlreadyAnswered, CodeAlreadyAnswered},
	{round.ErrPlayerGameOver, CodePlayerGameOver},
}

// ErrorCode classifies err into a Code.
//
// Postcondition: Returns CodeInternal for errors outside the caller-error taxonomy.
func ErrorCode(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorMessage returns the client-facing text for err: the sentinel's message
// for caller errors, a generic one otherwise.
func ErrorMessage(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return "internal server error"
}
