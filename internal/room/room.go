// Package room implements the race rooms: the lobby / countdown / racing /
// finished state machine of each room, and the Registry that maps room codes
// to live rooms.
//
// A Room serializes everything that touches it, client events and its own
// timer callbacks alike, with a mutex. Messages produced by a transition are
// handed to the Sender while the lock is held, so every connection observes a
// room's messages in the order the transitions happened.
package room

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/janpfeifer/TypeRace/internal/game"
	"k8s.io/klog/v2"
)

// Sender delivers a message to one connection. It must not block: the room
// lock is held while Send is called.
type Sender interface {
	Send(connID string, msg game.WsMessage)
}

// Options configure the rooms created by a Registry.
type Options struct {
	// MinPlayers is the minimum roster size to start a race.
	MinPlayers int

	// CountdownFrom is the first count of the pre-race countdown.
	CountdownFrom int

	// TimeModeWords is the number of words generated for "time" races.
	TimeModeWords int

	// Tick is the interval of the countdown and race clocks.
	Tick time.Duration

	// Settings new rooms start with.
	Settings game.Settings
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinPlayers:    1,
		CountdownFrom: game.CountdownFrom,
		TimeModeWords: game.TimeModeWords,
		Tick:          time.Second,
		Settings:      game.DefaultSettings(),
	}
}

func (o Options) sanitized() Options {
	def := DefaultOptions()
	if o.MinPlayers < 1 {
		o.MinPlayers = def.MinPlayers
	}
	if o.CountdownFrom < 1 {
		o.CountdownFrom = def.CountdownFrom
	}
	if o.TimeModeWords < 1 {
		o.TimeModeWords = def.TimeModeWords
	}
	if o.Tick <= 0 {
		o.Tick = def.Tick
	}
	if !o.Settings.GameMode.Valid() || o.Settings.TimeLimit < 1 || o.Settings.WordCount < 1 {
		o.Settings = def.Settings
	}
	return o
}

// Room is one race session, identified by its code.
type Room struct {
	mu sync.Mutex

	code     string
	host     string
	players  []*game.Player // In join order.
	settings game.Settings
	state    game.State
	words    []string
	started  time.Time // Zero unless racing or finished.

	// At most one of countdown / raceClock is non-nil at any time.
	// timerSeq is bumped whenever they are cancelled, so a callback that was
	// already waiting on mu when its timer got stopped sees it is stale.
	countdown *time.Timer
	raceClock *time.Timer
	timerSeq  uint64

	// closed is set once the last player left; the room is then unusable.
	closed bool

	sender Sender
	opts   Options
}

func newRoom(code string, host *game.Player, sender Sender, opts Options) *Room {
	return &Room{
		code:     code,
		host:     host.ID,
		players:  []*game.Player{host},
		settings: opts.Settings,
		state:    game.StateLobby,
		sender:   sender,
		opts:     opts,
	}
}

// Code returns the room code, which never changes.
func (r *Room) Code() string {
	return r.code
}

// State returns the current lifecycle state.
func (r *Room) State() game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Host returns the connection id of the current host.
func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// Words returns the words of the current race, empty outside a race.
func (r *Room) Words() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.words)
}

// StartTime returns when the current race started, or the zero time.
func (r *Room) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Snapshot returns a copy of the roster and settings.
func (r *Room) Snapshot() game.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Room %s: state=%s, %s", r.code, r.state, r.snapshotLocked())
}

func (r *Room) snapshotLocked() game.Snapshot {
	players := make([]game.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	return game.Snapshot{Players: players, Settings: r.settings, Host: r.host}
}

func (r *Room) player(id string) *game.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) broadcast(msgType game.MessageType, payload any) {
	msg := game.MustWsMessage(msgType, payload)
	for _, p := range r.players {
		r.sender.Send(p.ID, msg)
	}
}

func (r *Room) sendTo(id string, msgType game.MessageType, payload any) {
	r.sender.Send(id, game.MustWsMessage(msgType, payload))
}

func (r *Room) broadcastSnapshot(msgType game.MessageType) {
	r.broadcast(msgType, r.snapshotLocked())
}

// created sends the creation acknowledgement to the host and the first lobby snapshot.
func (r *Room) created() {
	r.mu.Lock()
	defer r.mu.Unlock()
	host := r.players[0]
	r.sendTo(host.ID, game.MsgTypeRoomCreated, game.RoomEnteredMessage{RoomCode: r.code, Player: *host, IsHost: true})
	r.broadcastSnapshot(game.MsgTypeLobbyUpdate)
}

// Join adds p to the room. Only possible while in the lobby.
func (r *Room) Join(p *game.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if r.state != game.StateLobby {
		return ErrGameInProgress
	}
	if r.player(p.ID) != nil {
		return ErrAlreadyInRoom
	}
	r.players = append(r.players, p)
	klog.V(1).Infof("Room %s: %s joined (%d players)", r.code, p.Name, len(r.players))
	r.sendTo(p.ID, game.MsgTypeRoomJoined, game.RoomEnteredMessage{RoomCode: r.code, Player: *p, IsHost: false})
	r.broadcastSnapshot(game.MsgTypeLobbyUpdate)
	return nil
}

// ToggleReady flips the ready flag of player id.
func (r *Room) ToggleReady(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(id)
	if p == nil {
		return ErrNotMember
	}
	if r.state != game.StateLobby {
		return ErrWrongState
	}
	p.Ready = !p.Ready
	r.broadcastSnapshot(game.MsgTypeLobbyUpdate)
	return nil
}

// UpdateSettings merges patch into the room settings. Host only, lobby only.
func (r *Room) UpdateSettings(id string, patch game.SettingsPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil {
		return ErrNotMember
	}
	if id != r.host {
		return ErrNotHost
	}
	if r.state != game.StateLobby {
		return ErrWrongState
	}
	settings, err := r.settings.Apply(patch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	r.settings = settings
	klog.V(1).Infof("Room %s: settings changed to %+v", r.code, settings)
	r.broadcastSnapshot(game.MsgTypeLobbyUpdate)
	return nil
}

// Start begins the countdown. Host only, and every other player must be ready.
func (r *Room) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil {
		return ErrNotMember
	}
	if id != r.host {
		return ErrNotHost
	}
	if r.state != game.StateLobby {
		return ErrGameInProgress
	}
	if len(r.players) < r.opts.MinPlayers {
		return fmt.Errorf("%w: need at least %d", ErrNotEnoughPlayers, r.opts.MinPlayers)
	}
	for _, p := range r.players {
		if p.ID != r.host && !p.Ready {
			return ErrNotAllReady
		}
	}

	r.state = game.StateCountdown
	klog.Infof("Room %s: countdown started with %d players", r.code, len(r.players))
	r.broadcast(game.MsgTypeCountdownStart, game.CountdownMessage{Count: r.opts.CountdownFrom})
	r.countdown = r.after(func() { r.countdownTick(r.opts.CountdownFrom - 1) })
	return nil
}

// after schedules fn to run with the room locked after one tick, unless the
// room timers are cancelled first.
func (r *Room) after(fn func()) *time.Timer {
	seq := r.timerSeq
	return time.AfterFunc(r.opts.Tick, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || seq != r.timerSeq {
			return
		}
		fn()
	})
}

// cancelTimers stops the countdown and race clock, if any.
func (r *Room) cancelTimers() {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
	if r.raceClock != nil {
		r.raceClock.Stop()
		r.raceClock = nil
	}
	r.timerSeq++
}

func (r *Room) countdownTick(count int) {
	if count > 0 {
		r.broadcast(game.MsgTypeCountdownTick, game.CountdownMessage{Count: count})
		r.countdown = r.after(func() { r.countdownTick(count - 1) })
		return
	}
	r.countdown = nil
	r.beginRace()
}

func (r *Room) beginRace() {
	count := r.opts.TimeModeWords
	if r.settings.GameMode == game.ModeWords {
		count = r.settings.WordCount
	}
	r.words = game.GenerateWords(count)
	r.started = time.Now()
	r.state = game.StateRacing
	klog.Infof("Room %s: race started, mode=%s, %d words", r.code, r.settings.GameMode, len(r.words))
	r.broadcast(game.MsgTypeGameStart, game.GameStartMessage{
		Words:     r.words,
		Settings:  r.settings,
		StartTime: r.started.UnixMilli(),
	})
	if r.settings.GameMode == game.ModeTime {
		limit := r.settings.TimeLimit
		r.raceClock = r.after(func() { r.raceTick(limit, 1) })
	}
}

func (r *Room) raceTick(limit, elapsed int) {
	remaining := limit - elapsed
	r.broadcast(game.MsgTypeTimerUpdate, game.TimerMessage{Remaining: remaining, Elapsed: elapsed})
	if remaining <= 0 {
		r.raceClock = nil
		r.endRace()
		return
	}
	r.raceClock = r.after(func() { r.raceTick(limit, elapsed+1) })
}

func (r *Room) endRace() {
	r.cancelTimers()
	r.state = game.StateFinished
	board := game.Leaderboard(r.players)
	klog.Infof("Room %s: race finished, %d players ranked", r.code, len(board))
	r.broadcast(game.MsgTypeGameEnd, game.GameEndMessage{Leaderboard: board})
}

func (r *Room) allFinished() bool {
	for _, p := range r.players {
		if !p.Finished {
			return false
		}
	}
	return len(r.players) > 0
}

// Progress records the telemetry reported by player id's client. The values
// are trusted as-is. Reports arriving outside a race are ignored.
func (r *Room) Progress(id string, report game.ProgressMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(id)
	if p == nil {
		return ErrNotMember
	}
	if r.state != game.StateRacing {
		klog.V(2).Infof("Room %s: ignoring progress from %s in state %s", r.code, p.Name, r.state)
		return nil
	}

	p.Progress = report.Progress
	p.WPM = report.WPM
	p.Accuracy = report.Accuracy
	p.CurrentWordIndex = report.CurrentWordIndex
	if report.Finished && !p.Finished {
		finish := report.FinishTime
		if finish <= 0 {
			finish = time.Now().UnixMilli()
		}
		p.Finished = true
		p.FinishTime = &finish
		klog.V(1).Infof("Room %s: %s finished", r.code, p.Name)
	}

	r.broadcast(game.MsgTypePlayerProgress, game.PlayerProgressMessage{
		PlayerID: p.ID,
		Progress: p.Progress,
		WPM:      p.WPM,
		Accuracy: p.Accuracy,
	})
	if r.allFinished() {
		r.endRace()
	}
	return nil
}

func (r *Room) resetToLobby() {
	r.cancelTimers()
	r.state = game.StateLobby
	r.words = nil
	r.started = time.Time{}
	for _, p := range r.players {
		p.Reset()
	}
}

// ReturnToLobby sends the room back to the lobby. Any player may ask.
func (r *Room) ReturnToLobby(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil {
		return ErrNotMember
	}
	r.resetToLobby()
	klog.V(1).Infof("Room %s: returned to lobby", r.code)
	r.broadcastSnapshot(game.MsgTypeReturnedToLobby)
	return nil
}

// Restart sends the room back to the lobby, like ReturnToLobby, but is
// reserved to the host and announced as a restart.
func (r *Room) Restart(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.player(id) == nil {
		return ErrNotMember
	}
	if id != r.host {
		return ErrNotHost
	}
	r.resetToLobby()
	klog.V(1).Infof("Room %s: restarted by host", r.code)
	r.broadcastSnapshot(game.MsgTypeGameRestart)
	return nil
}

// Leave removes player id. It returns true if the room became empty, in
// which case its timers are cancelled and it must be removed from the
// Registry.
func (r *Room) Leave(id string) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := slices.IndexFunc(r.players, func(p *game.Player) bool { return p.ID == id })
	if idx < 0 {
		return false, ErrNotMember
	}
	left := r.players[idx]
	r.players = slices.Delete(r.players, idx, idx+1)
	klog.V(1).Infof("Room %s: %s left (%d players)", r.code, left.Name, len(r.players))

	if len(r.players) == 0 {
		r.close()
		return true, nil
	}

	if r.host == id {
		r.host = r.players[0].ID
		klog.V(1).Infof("Room %s: host is now %s", r.code, r.players[0].Name)
		r.broadcast(game.MsgTypeHostChanged, game.HostChangedMessage{NewHost: r.host})
	}
	r.broadcastSnapshot(game.MsgTypeLobbyUpdate)

	// The player that left may have been the last one still typing.
	if r.state == game.StateRacing && r.allFinished() {
		r.endRace()
	}
	return false, nil
}

func (r *Room) close() {
	r.cancelTimers()
	r.closed = true
}

// Close cancels the room timers and makes the room unusable. Used on shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.close()
}
