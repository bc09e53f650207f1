// Package round implements the per-room higher/lower state machine: starting a
// game, scoring answers, closing rounds and finishing games.
//
// Every Engine method mutates a *room.Room and therefore must run while the
// room registry lock is held, typically inside room.Registry.WithPlayer.
package round

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/game/catalog"
	"github.com/cory-johannsen/hilo/internal/game/room"
)

var (
	// ErrNotHost is returned when a non-host tries to start the game.
	ErrNotHost = errors.New("only the host can start the game")
	// ErrGameAlreadyStarted is returned when starting a room that is not waiting.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrNoActiveGame is returned when answering outside a playing room.
	ErrNoActiveGame = errors.New("no active game found")
	// ErrAlreadyAnswered is returned on a second answer in the same round.
	ErrAlreadyAnswered = errors.New("already answered, waiting for other players")
	// ErrPlayerGameOver is returned when a player marked game over answers.
	ErrPlayerGameOver = errors.New("your game is over, wait for others to finish")
	// ErrInvalidChoice is returned for a choice other than ChoiceHigher or ChoiceLower.
	ErrInvalidChoice = errors.New("choice must be 1 (higher) or 2 (lower)")
)

const (
	// ChoiceHigher claims item B's value is at least item A's.
	ChoiceHigher = 1
	// ChoiceLower claims item B's value is at most item A's.
	ChoiceLower = 2
)

// Question is the public view of the current comparison: item A's value is
// revealed, item B's is withheld.
type Question struct {
	Round  int
	LabelA string
	ValueA int
	ImageA string
	LabelB string
	ImageB string
}

// StartResult is returned by Start.
type StartResult struct {
	Question Question
	Snapshot room.Snapshot
}

// ChoiceResult is the answering player's private outcome.
type ChoiceResult struct {
	Correct      bool
	Score        int
	Streak       int
	Message      string
	ValueB       int
	WaitingFor   int
	ResponseTime int
}

// PlayerResult is one player's line in a round summary.
type PlayerResult struct {
	SessionID    int64
	Name         string
	Correct      bool
	Score        int
	Streak       int
	ResponseTime int
}

// Closure describes a round that every player has answered. Exactly one of
// Finished or Next applies.
type Closure struct {
	Round    int
	LabelB   string
	ValueB   int
	Results  []PlayerResult
	Finished bool
	// Next is the following question when the game continues.
	Next     *Question
	Snapshot room.Snapshot
}

// SubmitResult is returned by Submit. Closure is nil while answers are pending.
type SubmitResult struct {
	Choice  ChoiceResult
	Closure *Closure
}

// Info is a player's private view plus the shared room state.
type Info struct {
	IsHost      bool
	Score       int
	Streak      int
	GameOver    bool
	HasAnswered bool
	Snapshot    room.Snapshot
	// Question is nil before the first start.
	Question *Question
}

// Engine applies round rules to rooms using items from a catalog.
type Engine struct {
	catalog         *catalog.Catalog
	scorePerCorrect int
	logger          *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: cat and logger must be non-nil; scorePerCorrect >= 0.
func NewEngine(cat *catalog.Catalog, scorePerCorrect int, logger *zap.Logger) *Engine {
	return &Engine{catalog: cat, scorePerCorrect: scorePerCorrect, logger: logger}
}

// Start moves a waiting room to playing on the host's request.
//
// Precondition: rm is non-empty and the registry lock is held.
// Postcondition: On success rm is Playing at round 1 with every player's
// per-game state reset; otherwise ErrNotHost or ErrGameAlreadyStarted.
func (e *Engine) Start(rm *room.Room, sessionID int64) (StartResult, error) {
	if !rm.IsHost(sessionID) {
		return StartResult{}, fmt.Errorf("session %d in room %d: %w", sessionID, rm.ID, ErrNotHost)
	}
	if rm.Status != room.StatusWaiting {
		return StartResult{}, fmt.Errorf("room %d is %s: %w", rm.ID, rm.Status, ErrGameAlreadyStarted)
	}

	rm.Status = room.StatusPlaying
	rm.CurrentRound = 1
	rm.ItemA = e.catalog.RandomIndex()
	rm.ItemB = e.catalog.RandomIndexExcept(rm.ItemA)
	for i := range rm.Players {
		p := &rm.Players[i]
		p.Score = 0
		p.Streak = 0
		p.GameOver = false
		p.HasAnswered = false
		p.LastAnswerCorrect = false
		p.ResponseTimeMs = 0
	}

	e.logger.Info("game started",
		zap.Int64("room_id", rm.ID),
		zap.Int("players", len(rm.Players)),
		zap.Int("max_rounds", rm.MaxRounds),
	)
	return StartResult{Question: e.question(rm), Snapshot: rm.Snapshot()}, nil
}

// Submit records playerIdx's answer for the current round and closes the round
// once every current player has answered.
//
// Precondition: 0 <= playerIdx < len(rm.Players) and the registry lock is held.
// Postcondition: On success the player is marked answered and scored; Closure
// is non-nil exactly when this answer completed the round.
func (e *Engine) Submit(rm *room.Room, playerIdx, choice, responseTimeMs int) (SubmitResult, error) {
	if rm.Status != room.StatusPlaying {
		return SubmitResult{}, fmt.Errorf("room %d is %s: %w", rm.ID, rm.Status, ErrNoActiveGame)
	}
	p := &rm.Players[playerIdx]
	if p.HasAnswered {
		return SubmitResult{}, fmt.Errorf("session %d round %d: %w", p.SessionID, rm.CurrentRound, ErrAlreadyAnswered)
	}
	if p.GameOver {
		return SubmitResult{}, fmt.Errorf("session %d: %w", p.SessionID, ErrPlayerGameOver)
	}
	if choice != ChoiceHigher && choice != ChoiceLower {
		return SubmitResult{}, fmt.Errorf("choice %d: %w", choice, ErrInvalidChoice)
	}
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}

	a := e.catalog.Item(rm.ItemA)
	b := e.catalog.Item(rm.ItemB)
	correct := IsCorrect(choice, a.Value, b.Value)

	p.HasAnswered = true
	p.LastAnswerCorrect = correct
	p.ResponseTimeMs = responseTimeMs
	verdict := "Wrong!"
	if correct {
		p.Score += e.scorePerCorrect
		p.Streak++
		verdict = "Correct!"
	} else {
		p.Streak = 0
	}

	res := SubmitResult{Choice: ChoiceResult{
		Correct:      correct,
		Score:        p.Score,
		Streak:       p.Streak,
		Message:      fmt.Sprintf("%s: $%d - %s", b.Label, b.Value, verdict),
		ValueB:       b.Value,
		WaitingFor:   len(rm.Players) - rm.AnsweredCount(),
		ResponseTime: responseTimeMs,
	}}

	e.logger.Debug("answer recorded",
		zap.Int64("room_id", rm.ID),
		zap.Int64("session_id", p.SessionID),
		zap.Int("round", rm.CurrentRound),
		zap.Bool("correct", correct),
		zap.Int("waiting_for", res.Choice.WaitingFor),
	)

	res.Closure = e.CloseIfComplete(rm)
	return res, nil
}

// CloseIfComplete closes the current round when every current player has
// answered: it summarizes the round, then either finishes the game or advances
// to the next question with item B promoted to item A.
//
// Precondition: The registry lock is held.
// Postcondition: Returns nil unless rm is Playing and all players have answered.
func (e *Engine) CloseIfComplete(rm *room.Room) *Closure {
	if rm.Status != room.StatusPlaying || !rm.AllAnswered() {
		return nil
	}

	b := e.catalog.Item(rm.ItemB)
	c := &Closure{
		Round:   rm.CurrentRound,
		LabelB:  b.Label,
		ValueB:  b.Value,
		Results: make([]PlayerResult, len(rm.Players)),
	}
	for i, p := range rm.Players {
		c.Results[i] = PlayerResult{
			SessionID:    p.SessionID,
			Name:         p.Name,
			Correct:      p.LastAnswerCorrect,
			Score:        p.Score,
			Streak:       p.Streak,
			ResponseTime: p.ResponseTimeMs,
		}
	}

	if rm.MaxRounds > 0 && rm.CurrentRound >= rm.MaxRounds {
		rm.Status = room.StatusFinished
		c.Finished = true
		e.logger.Info("game finished", zap.Int64("room_id", rm.ID), zap.Int("round", rm.CurrentRound))
	} else {
		rm.CurrentRound++
		rm.ItemA = rm.ItemB
		rm.ItemB = e.catalog.RandomIndexExcept(rm.ItemA)
		for i := range rm.Players {
			rm.Players[i].HasAnswered = false
		}
		q := e.question(rm)
		c.Next = &q
		e.logger.Debug("round advanced", zap.Int64("room_id", rm.ID), zap.Int("round", rm.CurrentRound))
	}
	c.Snapshot = rm.Snapshot()
	return c
}

// Info returns playerIdx's private view of rm.
//
// Precondition: 0 <= playerIdx < len(rm.Players) and the registry lock is held.
func (e *Engine) Info(rm *room.Room, playerIdx int) Info {
	p := rm.Players[playerIdx]
	info := Info{
		IsHost:      rm.IsHost(p.SessionID),
		Score:       p.Score,
		Streak:      p.Streak,
		GameOver:    p.GameOver,
		HasAnswered: p.HasAnswered,
		Snapshot:    rm.Snapshot(),
	}
	if rm.CurrentRound > 0 {
		q := e.question(rm)
		info.Question = &q
	}
	return info
}

func (e *Engine) question(rm *room.Room) Question {
	a := e.catalog.Item(rm.ItemA)
	b := e.catalog.Item(rm.ItemB)
	return Question{
		Round:  rm.CurrentRound,
		LabelA: a.Label,
		ValueA: a.Value,
		ImageA: a.ImageURL,
		LabelB: b.Label,
		ImageB: b.ImageURL,
	}
}

// IsCorrect applies the answer rule: ChoiceHigher is right when valueB >= valueA
// and ChoiceLower when valueB <= valueA, so equal values accept both.
func IsCorrect(choice, valueA, valueB int) bool {
	switch choice {
	case ChoiceHigher:
		return valueB >= valueA
	case ChoiceLower:
		return valueB <= valueA
	default:
		return false
	}
}
