package round_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hilo/internal/game/catalog"
	"github.com/cory-johannsen/hilo/internal/game/room"
	"github.com/cory-johannsen/hilo/internal/game/round"
)

// cycleSource returns 0, 1, 2, ... modulo n.
type cycleSource struct{ next int }

func (s *cycleSource) Intn(n int) int {
	v := s.next % n
	s.next++
	return v
}

func newEngine(t *testing.T, items []catalog.Item) *round.Engine {
	t.Helper()
	cat, err := catalog.New(items, &cycleSource{})
	require.NoError(t, err)
	return round.NewEngine(cat, 10, zaptest.NewLogger(t))
}

func ascendingItems() []catalog.Item {
	return []catalog.Item{
		{Label: "cheap", Value: 100},
		{Label: "mid", Value: 200},
		{Label: "dear", Value: 300},
	}
}

func waitingRoom(maxRounds int, sessions ...int64) *room.Room {
	rm := &room.Room{
		ID:            1,
		Name:          "Quiz",
		HostSessionID: sessions[0],
		Status:        room.StatusWaiting,
		MaxPlayers:    10,
		MaxRounds:     maxRounds,
	}
	for _, sid := range sessions {
		rm.Players = append(rm.Players, room.Player{SessionID: sid, Name: "p"})
	}
	rm.Players[0].IsReady = true
	return rm
}

func TestStart(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)
	rm.Players[1].Score = 40
	rm.Players[1].Streak = 4

	res, err := e.Start(rm, 1)
	require.NoError(t, err)
	assert.Equal(t, room.StatusPlaying, rm.Status)
	assert.Equal(t, 1, rm.CurrentRound)
	assert.NotEqual(t, rm.ItemA, rm.ItemB)
	assert.Equal(t, 1, res.Question.Round)
	assert.Equal(t, "cheap", res.Question.LabelA)
	assert.Equal(t, 100, res.Question.ValueA)
	assert.Equal(t, "mid", res.Question.LabelB)
	assert.Equal(t, "playing", res.Snapshot.Status)
	assert.Zero(t, rm.Players[1].Score)
	assert.Zero(t, rm.Players[1].Streak)
}

func TestStart_NotHost(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)
	_, err := e.Start(rm, 2)
	assert.ErrorIs(t, err, round.ErrNotHost)
	assert.Equal(t, room.StatusWaiting, rm.Status)
}

func TestStart_AlreadyStarted(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	_, err = e.Start(rm, 1)
	assert.ErrorIs(t, err, round.ErrGameAlreadyStarted)
}

func TestSubmit_NoActiveGame(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1)
	_, err := e.Submit(rm, 0, round.ChoiceHigher, 10)
	assert.ErrorIs(t, err, round.ErrNoActiveGame)
}

func TestSubmit_InvalidChoice(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	_, err = e.Submit(rm, 0, 3, 10)
	assert.ErrorIs(t, err, round.ErrInvalidChoice)
	assert.False(t, rm.Players[0].HasAnswered)
}

func TestSubmit_PlayerGameOver(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	rm.Players[0].GameOver = true
	_, err = e.Submit(rm, 0, round.ChoiceHigher, 10)
	assert.ErrorIs(t, err, round.ErrPlayerGameOver)
}

func TestSubmit_ScoresAndReportsPrivately(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)

	res, err := e.Submit(rm, 0, round.ChoiceHigher, -5)
	require.NoError(t, err)
	assert.True(t, res.Choice.Correct)
	assert.Equal(t, 10, res.Choice.Score)
	assert.Equal(t, 1, res.Choice.Streak)
	assert.Equal(t, "mid: $200 - Correct!", res.Choice.Message)
	assert.Equal(t, 200, res.Choice.ValueB)
	assert.Equal(t, 1, res.Choice.WaitingFor)
	assert.Zero(t, res.Choice.ResponseTime, "negative response times clamp to zero")
	assert.Nil(t, res.Closure)

	_, err = e.Submit(rm, 0, round.ChoiceLower, 5)
	assert.ErrorIs(t, err, round.ErrAlreadyAnswered)

	res, err = e.Submit(rm, 1, round.ChoiceLower, 700)
	require.NoError(t, err)
	assert.False(t, res.Choice.Correct)
	assert.Equal(t, "mid: $200 - Wrong!", res.Choice.Message)
	assert.Zero(t, res.Choice.Score)
	assert.Zero(t, res.Choice.WaitingFor)
	require.NotNil(t, res.Closure)
}

func TestTieAcceptsBothChoices(t *testing.T) {
	e := newEngine(t, []catalog.Item{{Label: "x", Value: 50}, {Label: "y", Value: 50}})
	rm := waitingRoom(5, 1, 2)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)

	r1, err := e.Submit(rm, 0, round.ChoiceHigher, 1)
	require.NoError(t, err)
	r2, err := e.Submit(rm, 1, round.ChoiceLower, 1)
	require.NoError(t, err)
	assert.True(t, r1.Choice.Correct)
	assert.True(t, r2.Choice.Correct)
}

func TestRoundClosesOnceAndPromotesItemB(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2, 3)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	oldB := rm.ItemB

	closures := 0
	for idx := range rm.Players {
		res, err := e.Submit(rm, idx, round.ChoiceHigher, 100*idx)
		require.NoError(t, err)
		if res.Closure != nil {
			closures++
			c := res.Closure
			assert.Equal(t, 1, c.Round)
			assert.False(t, c.Finished)
			require.NotNil(t, c.Next)
			assert.Equal(t, 2, c.Next.Round)
			require.Len(t, c.Results, 3)
			assert.Equal(t, 200, c.Results[2].ResponseTime)
		}
	}
	assert.Equal(t, 1, closures)
	assert.Equal(t, 2, rm.CurrentRound)
	assert.Equal(t, oldB, rm.ItemA)
	assert.NotEqual(t, rm.ItemA, rm.ItemB)
	for _, p := range rm.Players {
		assert.False(t, p.HasAnswered)
		assert.Equal(t, 10, p.Score, "scores persist across rounds")
	}
	assert.Nil(t, e.CloseIfComplete(rm), "no second closure for the same round")
}

func TestGameFinishesAtMaxRounds(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)

	var last *round.Closure
	for r := 1; r <= 5; r++ {
		for idx := range rm.Players {
			res, err := e.Submit(rm, idx, round.ChoiceHigher, 0)
			require.NoError(t, err)
			if res.Closure != nil {
				last = res.Closure
				if r < 5 {
					assert.NotNil(t, last.Next)
				}
			}
		}
	}
	require.NotNil(t, last)
	assert.True(t, last.Finished)
	assert.Nil(t, last.Next)
	assert.Equal(t, 5, last.Round)
	assert.Equal(t, "finished", last.Snapshot.Status)
	assert.Equal(t, room.StatusFinished, rm.Status)
	assert.Equal(t, 5, rm.CurrentRound)

	_, err = e.Submit(rm, 0, round.ChoiceHigher, 0)
	assert.ErrorIs(t, err, round.ErrNoActiveGame)
}

func TestEndlessNeverFinishes(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(0, 1)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	for r := 0; r < 60; r++ {
		res, err := e.Submit(rm, 0, round.ChoiceLower, 0)
		require.NoError(t, err)
		require.NotNil(t, res.Closure)
		assert.False(t, res.Closure.Finished)
	}
	assert.Equal(t, 61, rm.CurrentRound)
}

func TestCloseIfCompleteAfterLeave(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)
	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	_, err = e.Submit(rm, 0, round.ChoiceHigher, 0)
	require.NoError(t, err)

	rm.Players = rm.Players[:1]
	c := e.CloseIfComplete(rm)
	require.NotNil(t, c)
	assert.Len(t, c.Results, 1)
	assert.Equal(t, 2, rm.CurrentRound)
}

func TestInfo(t *testing.T) {
	e := newEngine(t, ascendingItems())
	rm := waitingRoom(5, 1, 2)

	info := e.Info(rm, 1)
	assert.False(t, info.IsHost)
	assert.Nil(t, info.Question)

	_, err := e.Start(rm, 1)
	require.NoError(t, err)
	_, err = e.Submit(rm, 0, round.ChoiceHigher, 0)
	require.NoError(t, err)

	info = e.Info(rm, 0)
	assert.True(t, info.IsHost)
	assert.True(t, info.HasAnswered)
	assert.Equal(t, 10, info.Score)
	require.NotNil(t, info.Question)
	assert.Equal(t, 1, info.Question.Round)
	assert.Equal(t, 2, info.Snapshot.PlayerCount)
}

// TestScenario walks two players through the first round of a five-round game
// via the registry, the way request handlers drive the engine.
func TestScenario(t *testing.T) {
	e := newEngine(t, ascendingItems())
	reg := room.NewRegistry(room.Limits{MaxRooms: 4, MaxPlayers: 4, MinRounds: 5, MaxRounds: 50, DefaultRounds: 10}, zaptest.NewLogger(t))

	snap, err := reg.Create(room.CreateRequest{SessionID: 1, RoomName: "Quiz", MaxRounds: 5})
	require.NoError(t, err)
	assert.Equal(t, "waiting", snap.Status)
	assert.Equal(t, 1, snap.PlayerCount)

	snap, err = reg.Join(2, snap.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.PlayerCount)

	var start round.StartResult
	require.NoError(t, reg.WithPlayer(1, func(rm *room.Room, _ int) error {
		var err error
		start, err = e.Start(rm, 1)
		return err
	}))
	assert.Equal(t, "playing", start.Snapshot.Status)
	assert.Equal(t, 1, start.Question.Round)
	labelB := start.Question.LabelB

	var closure *round.Closure
	for _, sid := range []int64{1, 2} {
		require.NoError(t, reg.WithPlayer(sid, func(rm *room.Room, idx int) error {
			res, err := e.Submit(rm, idx, round.ChoiceHigher, 0)
			if res.Closure != nil {
				closure = res.Closure
			}
			return err
		}))
	}
	require.NotNil(t, closure)
	require.NotNil(t, closure.Next)
	assert.Equal(t, labelB, closure.Next.LabelA, "item B is promoted to item A")
	for _, r := range closure.Results {
		assert.Equal(t, 10, r.Score)
		assert.Equal(t, 1, r.Streak)
	}
}

// Property-based tests

func TestPropertyTieAcceptsBoth(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Int().Draw(rt, "v")
		assert.True(rt, round.IsCorrect(round.ChoiceHigher, v, v))
		assert.True(rt, round.IsCorrect(round.ChoiceLower, v, v))
	})
}

func TestPropertyExactlyOneChoiceCorrectWhenDistinct(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(-1_000_000, 1_000_000).Draw(rt, "a")
		b := rapid.IntRange(-1_000_000, 1_000_000).Filter(func(b int) bool { return b != a }).Draw(rt, "b")
		higher := round.IsCorrect(round.ChoiceHigher, a, b)
		lower := round.IsCorrect(round.ChoiceLower, a, b)
		assert.NotEqual(rt, higher, lower)
	})
}

func TestPropertyRoundClosesExactlyOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cat, err := catalog.New(ascendingItems(), catalog.NewCryptoSource())
		require.NoError(rt, err)
		e := round.NewEngine(cat, 10, zaptest.NewLogger(t))

		n := rapid.IntRange(1, 8).Draw(rt, "players")
		sessions := make([]int64, n)
		for i := range sessions {
			sessions[i] = int64(i + 1)
		}
		rm := waitingRoom(5, sessions...)
		_, err = e.Start(rm, 1)
		require.NoError(rt, err)

		order := rapid.Permutation(func() []int {
			idx := make([]int, n)
			for i := range idx {
				idx[i] = i
			}
			return idx
		}()).Draw(rt, "order")

		closures := 0
		for i, idx := range order {
			res, err := e.Submit(rm, idx, rapid.IntRange(1, 2).Draw(rt, "choice"), 0)
			require.NoError(rt, err)
			if res.Closure != nil {
				closures++
				assert.Equal(rt, n-1, i, "closure fires on the last answer")
			}
		}
		assert.Equal(rt, 1, closures)
	})
}
