package room

import (
	"testing"

	"github.com/janpfeifer/TypeRace/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2")

	require.NoError(t, r.Join(game.NewPlayer("p3", "Carol", "🐙")))
	assert.Equal(t, []game.MessageType{game.MsgTypeRoomJoined, game.MsgTypeLobbyUpdate}, rec.types("p3"))
	joined := payload[game.RoomEnteredMessage](t, rec.messages("p3")[0])
	assert.False(t, joined.IsHost)
	assert.Equal(t, r.Code(), joined.RoomCode)

	// Existing players only see the snapshot, not the private acknowledgement.
	assert.Equal(t, []game.MessageType{game.MsgTypeLobbyUpdate}, rec.types("p1"))
	snap := payload[game.Snapshot](t, rec.messages("p1")[0])
	require.Len(t, snap.Players, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{snap.Players[0].ID, snap.Players[1].ID, snap.Players[2].ID})
	assert.Equal(t, "p1", snap.Host)

	assert.ErrorIs(t, r.Join(game.NewPlayer("p3", "Carol", "")), ErrAlreadyInRoom)
}

func TestJoinNotInLobby(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions())
	require.NoError(t, r.Start("p1"))
	defer r.Close()

	err := r.Join(game.NewPlayer("late", "Late", ""))
	assert.ErrorIs(t, err, ErrGameInProgress)
	assert.Empty(t, rec.messages("late"))
	assert.Len(t, r.Snapshot().Players, 1)
}

func TestToggleReady(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2")

	require.NoError(t, r.ToggleReady("p2"))
	assert.True(t, r.Snapshot().Players[1].Ready)
	require.NoError(t, r.ToggleReady("p2"))
	assert.False(t, r.Snapshot().Players[1].Ready)
	assert.Len(t, rec.ofType("p1", game.MsgTypeLobbyUpdate), 2)

	assert.ErrorIs(t, r.ToggleReady("stranger"), ErrNotMember)
}

func TestUpdateSettings(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2")

	patch := game.SettingsPatch{GameMode: ptr(game.ModeWords), WordCount: ptr(30)}
	require.NoError(t, r.UpdateSettings("p1", patch))
	want := game.Settings{GameMode: game.ModeWords, TimeLimit: 300, WordCount: 30}
	assert.Equal(t, want, r.Snapshot().Settings)
	snap := payload[game.Snapshot](t, rec.ofType("p2", game.MsgTypeLobbyUpdate)[0])
	assert.Equal(t, want, snap.Settings)

	rec.reset()
	assert.ErrorIs(t, r.UpdateSettings("p2", game.SettingsPatch{TimeLimit: ptr(10)}), ErrNotHost)
	assert.ErrorIs(t, r.UpdateSettings("p1", game.SettingsPatch{TimeLimit: ptr(-10)}), ErrInvalidSettings)
	assert.Equal(t, want, r.Snapshot().Settings)
	assert.Empty(t, rec.messages("p1"))
	assert.Empty(t, rec.messages("p2"))
}

func TestStartByNonHost(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2")
	require.NoError(t, r.ToggleReady("p2"))
	rec.reset()

	assert.ErrorIs(t, r.Start("p2"), ErrNotHost)
	assert.Equal(t, game.StateLobby, r.State())
	assert.Empty(t, rec.messages("p1"))
	assert.Empty(t, rec.messages("p2"))
}

func TestStartReadinessGate(t *testing.T) {
	_, r, _ := setupRoom(t, DefaultOptions(), "p2", "p3")

	// The host never has to be ready, but everyone else does.
	assert.ErrorIs(t, r.Start("p1"), ErrNotAllReady)
	require.NoError(t, r.ToggleReady("p2"))
	assert.ErrorIs(t, r.Start("p1"), ErrNotAllReady)
	require.NoError(t, r.ToggleReady("p3"))

	// One player changing their mind blocks the start again.
	require.NoError(t, r.ToggleReady("p2"))
	assert.ErrorIs(t, r.Start("p1"), ErrNotAllReady)
	assert.Equal(t, game.StateLobby, r.State())

	require.NoError(t, r.ToggleReady("p2"))
	require.NoError(t, r.Start("p1"))
	defer r.Close()
	assert.Equal(t, game.StateCountdown, r.State())

	assert.ErrorIs(t, r.Start("p1"), ErrGameInProgress)
}

func TestStartHostNeedNotBeReady(t *testing.T) {
	// Room "AB12": P1 hosts and never toggles ready, P2 is ready.
	reg := NewRegistry(newRecorder(), DefaultOptions())
	reg.newCode = func() string { return "AB12" }
	r := reg.Create(game.NewPlayer("P1", "Host", ""))
	require.NoError(t, r.Join(game.NewPlayer("P2", "Guest", "")))
	require.NoError(t, r.ToggleReady("P2"))

	require.NoError(t, r.Start("P1"))
	defer r.Close()
	assert.Equal(t, game.StateCountdown, r.State())
}

func TestStartMinPlayers(t *testing.T) {
	opts := DefaultOptions()
	opts.MinPlayers = 2
	_, r, rec := setupRoom(t, opts)

	assert.ErrorIs(t, r.Start("p1"), ErrNotEnoughPlayers)
	assert.Equal(t, game.StateLobby, r.State())
	assert.Empty(t, rec.messages("p1"))

	require.NoError(t, r.Join(game.NewPlayer("p2", "Bob", "")))
	require.NoError(t, r.ToggleReady("p2"))
	require.NoError(t, r.Start("p1"))
	r.Close()
}

func TestProgressOutsideRace(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2")

	require.NoError(t, r.Progress("p2", game.ProgressMessage{Progress: 50, WPM: 80, Accuracy: 90}))
	assert.Zero(t, r.Snapshot().Players[1].Progress)
	assert.Empty(t, rec.messages("p1"))

	assert.ErrorIs(t, r.Progress("stranger", game.ProgressMessage{}), ErrNotMember)
}

func TestLeaveHostReassigned(t *testing.T) {
	_, r, rec := setupRoom(t, DefaultOptions(), "p2", "p3")

	empty, err := r.Leave("p1")
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, "p2", r.Host())

	assert.Equal(t, []game.MessageType{game.MsgTypeHostChanged, game.MsgTypeLobbyUpdate}, rec.types("p3"))
	changed := payload[game.HostChangedMessage](t, rec.messages("p3")[0])
	assert.Equal(t, "p2", changed.NewHost)
	assert.Empty(t, rec.messages("p1"))

	// A non-host leaving keeps the host.
	rec.reset()
	_, err = r.Leave("p3")
	require.NoError(t, err)
	assert.Equal(t, "p2", r.Host())
	assert.Equal(t, []game.MessageType{game.MsgTypeLobbyUpdate}, rec.types("p2"))

	_, err = r.Leave("p3")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestLeaveLastPlayerDestroysRoom(t *testing.T) {
	reg, r, rec := setupRoom(t, DefaultOptions(), "p2")
	code := r.Code()

	empty, err := r.Leave("p2")
	require.NoError(t, err)
	require.False(t, empty)
	empty, err = r.Leave("p1")
	require.NoError(t, err)
	require.True(t, empty)
	reg.Remove(r)

	_, err = reg.Get(code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, r.Join(game.NewPlayer("p3", "Carol", "")), ErrRoomNotFound)
	assert.Empty(t, rec.ofType("p1", game.MsgTypeHostChanged))
}
