package room_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hilo/internal/game/room"
)

func defaultLimits() room.Limits {
	return room.Limits{
		MaxRooms:      3,
		MaxPlayers:    3,
		MinRounds:     5,
		MaxRounds:     50,
		DefaultRounds: 10,
	}
}

func newRegistry(t *testing.T) *room.Registry {
	return room.NewRegistry(defaultLimits(), zaptest.NewLogger(t))
}

func create(t *testing.T, r *room.Registry, sid int64, rounds int) room.Snapshot {
	t.Helper()
	snap, err := r.Create(room.CreateRequest{SessionID: sid, RoomName: "Quiz", PlayerName: "host", MaxRounds: rounds})
	require.NoError(t, err)
	return snap
}

func TestCreate(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)

	assert.Equal(t, int64(1), snap.ID)
	assert.Equal(t, "Quiz", snap.Name)
	assert.Equal(t, "waiting", snap.Status)
	assert.Equal(t, 1, snap.PlayerCount)
	assert.Equal(t, 5, snap.MaxRounds)
	assert.Equal(t, 0, snap.CurrentRound)
	require.Len(t, snap.Players, 1)
	assert.True(t, snap.Players[0].IsHost)
	assert.True(t, snap.Players[0].IsReady)
}

func TestCreate_Defaults(t *testing.T) {
	r := newRegistry(t)
	snap, err := r.Create(room.CreateRequest{SessionID: 9})
	require.NoError(t, err)
	assert.Equal(t, room.DefaultRoomName, snap.Name)
	assert.Equal(t, "Player_9", snap.Players[0].Name)
	assert.Equal(t, 10, snap.MaxRounds)
}

func TestCreate_TruncatesNames(t *testing.T) {
	r := newRegistry(t)
	snap, err := r.Create(room.CreateRequest{
		SessionID:  1,
		RoomName:   strings.Repeat("r", 100),
		PlayerName: strings.Repeat("p", 100),
	})
	require.NoError(t, err)
	assert.Len(t, snap.Name, room.MaxRoomNameLen)
	assert.Len(t, snap.Players[0].Name, room.MaxPlayerNameLen)
}

func TestCreate_ClampsRounds(t *testing.T) {
	cases := map[int]int{0: 10, -3: 10, 4: 10, 5: 5, 30: 30, 50: 50, 51: 50, 1000: 50}
	for requested, want := range cases {
		r := newRegistry(t)
		snap := create(t, r, 1, requested)
		assert.Equal(t, want, snap.MaxRounds, "requested %d", requested)
	}
}

func TestCreate_Endless(t *testing.T) {
	limits := defaultLimits()
	r := room.NewRegistry(limits, zaptest.NewLogger(t))
	snap, err := r.Create(room.CreateRequest{SessionID: 1, Endless: true})
	require.NoError(t, err)
	assert.Equal(t, 10, snap.MaxRounds, "endless ignored unless allowed")

	limits.AllowEndless = true
	r = room.NewRegistry(limits, zaptest.NewLogger(t))
	snap, err = r.Create(room.CreateRequest{SessionID: 1, Endless: true})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.MaxRounds)
}

func TestCreate_AlreadyInRoom(t *testing.T) {
	r := newRegistry(t)
	create(t, r, 1, 5)
	_, err := r.Create(room.CreateRequest{SessionID: 1})
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)
}

func TestCreate_RegistryFull(t *testing.T) {
	r := newRegistry(t)
	for sid := int64(1); sid <= 3; sid++ {
		create(t, r, sid, 5)
	}
	_, err := r.Create(room.CreateRequest{SessionID: 4})
	assert.ErrorIs(t, err, room.ErrRegistryFull)
}

func TestJoin(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)

	joined, err := r.Join(2, snap.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, joined.PlayerCount)
	assert.Equal(t, "bob", joined.Players[1].Name)
	assert.False(t, joined.Players[1].IsHost)
	assert.False(t, joined.Players[1].IsReady)
}

func TestJoin_Errors(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)

	_, err := r.Join(2, 0, "")
	assert.ErrorIs(t, err, room.ErrInvalidRoomID)

	_, err = r.Join(1, snap.ID, "")
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)

	_, err = r.Join(2, 99, "")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = r.Join(2, snap.ID, "")
	require.NoError(t, err)
	_, err = r.Join(3, snap.ID, "")
	require.NoError(t, err)
	_, err = r.Join(4, snap.ID, "")
	assert.ErrorIs(t, err, room.ErrRoomFull)

	require.NoError(t, r.WithPlayer(1, func(rm *room.Room, _ int) error {
		rm.Status = room.StatusPlaying
		return nil
	}))
	_, err = r.Leave(3, nil)
	require.NoError(t, err)
	_, err = r.Join(5, snap.ID, "")
	assert.ErrorIs(t, err, room.ErrRoomNotWaiting)
}

func TestLeave_LastPlayerDeletesRoomAndReleasesID(t *testing.T) {
	r := newRegistry(t)
	first := create(t, r, 1, 5)
	create(t, r, 2, 5)

	res, err := r.Leave(1, nil)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, first.ID, res.RoomID)
	assert.Len(t, r.ListJoinable(), 1)

	again := create(t, r, 3, 5)
	assert.Equal(t, first.ID, again.ID, "emptied room id is reused by the next create")

	fresh := create(t, r, 4, 5)
	assert.Equal(t, int64(3), fresh.ID)
}

func TestLeave_HostTransfer(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)
	_, err := r.Join(2, snap.ID, "second")
	require.NoError(t, err)
	_, err = r.Join(3, snap.ID, "third")
	require.NoError(t, err)

	res, err := r.Leave(1, nil)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Equal(t, int64(2), res.NewHostSessionID)
	assert.Equal(t, int64(2), res.Snapshot.HostSessionID)
	require.Len(t, res.Snapshot.Players, 2)
	assert.Equal(t, "second", res.Snapshot.Players[0].Name)
	assert.True(t, res.Snapshot.Players[0].IsHost)
	assert.True(t, res.Snapshot.Players[0].IsReady)
	assert.Equal(t, "third", res.Snapshot.Players[1].Name)
}

func TestLeave_NonHostKeepsHost(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)
	_, err := r.Join(2, snap.ID, "")
	require.NoError(t, err)

	var ran bool
	res, err := r.Leave(2, func(rm *room.Room) { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Zero(t, res.NewHostSessionID)
	assert.Equal(t, "Player_2", res.PlayerName)
	assert.Equal(t, int64(1), res.Snapshot.HostSessionID)
}

func TestLeave_NotInRoom(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Leave(1, nil)
	assert.ErrorIs(t, err, room.ErrNotInRoom)
}

func TestFindBySession(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)
	_, err := r.Join(2, snap.ID, "")
	require.NoError(t, err)

	found, idx, ok := r.FindBySession(2)
	require.True(t, ok)
	assert.Equal(t, snap.ID, found.ID)
	assert.Equal(t, 1, idx)

	_, idx, ok = r.FindBySession(3)
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestListJoinable_SkipsFinished(t *testing.T) {
	r := newRegistry(t)
	create(t, r, 1, 5)
	create(t, r, 2, 5)
	require.NoError(t, r.WithPlayer(1, func(rm *room.Room, _ int) error {
		rm.Status = room.StatusFinished
		return nil
	}))

	list := r.ListJoinable()
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, 2, r.ActiveCount())
}

func TestWithPlayer_NotInRoom(t *testing.T) {
	r := newRegistry(t)
	err := r.WithPlayer(1, func(*room.Room, int) error { return nil })
	assert.ErrorIs(t, err, room.ErrNotInRoom)
}

func TestSnapshotIsDetached(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)
	snap.Players[0].Score = 999

	found, _, ok := r.FindBySession(1)
	require.True(t, ok)
	assert.Zero(t, found.Players[0].Score)
}

func TestConcurrentJoinRespectsCapacity(t *testing.T) {
	r := newRegistry(t)
	snap := create(t, r, 1, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for sid := int64(2); sid < 20; sid++ {
		wg.Add(1)
		go func(sid int64) {
			defer wg.Done()
			if _, err := r.Join(sid, snap.ID, ""); err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(sid)
	}
	wg.Wait()
	assert.Equal(t, 2, joined)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "empty", room.StatusEmpty.String())
	assert.Equal(t, "waiting", room.StatusWaiting.String())
	assert.Equal(t, "playing", room.StatusPlaying.String())
	assert.Equal(t, "finished", room.StatusFinished.String())
}

// Property-based tests

// TestPropertyRoomInvariants drives random create/join/leave sequences and checks
// that every live room has exactly one host, that host is a member, and that
// no two live rooms share an id or a member.
func TestPropertyRoomInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := room.NewRegistry(defaultLimits(), zaptest.NewLogger(t))
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			sid := rapid.Int64Range(1, 8).Draw(rt, "sid")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_, _ = r.Create(room.CreateRequest{SessionID: sid})
			case 1:
				_, _ = r.Join(sid, rapid.Int64Range(1, 5).Draw(rt, "room"), "")
			case 2:
				_, _ = r.Leave(sid, nil)
			}
		}

		ids := map[int64]bool{}
		members := map[int64]bool{}
		for sid := int64(1); sid <= 8; sid++ {
			snap, idx, ok := r.FindBySession(sid)
			if !ok {
				continue
			}
			assert.Equal(rt, sid, snap.Players[idx].SessionID)
			assert.False(rt, members[sid])
			members[sid] = true
			ids[snap.ID] = true

			hosts := 0
			for _, p := range snap.Players {
				if p.IsHost {
					hosts++
					assert.Equal(rt, snap.HostSessionID, p.SessionID)
				}
			}
			assert.Equal(rt, 1, hosts)
			assert.GreaterOrEqual(rt, snap.ID, int64(1))
		}
		assert.Equal(rt, len(ids), r.ActiveCount())
	})
}
