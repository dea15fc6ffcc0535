package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/janpfeifer/TypeRace/internal/game"
	"github.com/janpfeifer/TypeRace/internal/room"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// ServerState is the session gateway: it owns the client connections and
// the room registry, and turns client events into room operations.
type ServerState struct {
	// Address the server is listening on, set by Run.
	Address string

	Rooms *room.Registry

	cfg Config

	mu    sync.RWMutex
	conns map[string]*connection

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServerState creates the gateway with an empty room registry.
func NewServerState(cfg Config) *ServerState {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ServerState{
		cfg:    cfg,
		conns:  make(map[string]*connection),
		ctx:    ctx,
		cancel: cancel,
	}
	s.Rooms = room.NewRegistry(s, cfg.RoomOptions())
	return s
}

// Send implements room.Sender. Messages to unknown (already gone) connections are dropped.
func (s *ServerState) Send(connID string, msg game.WsMessage) {
	s.mu.RLock()
	c := s.conns[connID]
	s.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(msg)
}

// ConnectionCount returns the number of open client connections.
func (s *ServerState) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// HandleWS upgrades the request to a WebSocket and serves the client until
// it disconnects or the server shuts down.
func (s *ServerState) HandleWS(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		klog.Errorf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	wsConn.SetReadLimit(s.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	c := &connection{
		id:      uuid.NewString(),
		addr:    r.RemoteAddr,
		conn:    wsConn,
		send:    make(chan game.WsMessage, s.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst),
		cancel:  cancel,
	}
	s.register(c)
	defer s.unregister(c)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writePump(ctx, s.cfg.PingInterval)
	}()

	for {
		msg, ok := c.read(ctx)
		if !ok {
			break
		}
		if !c.allow() {
			continue
		}
		s.dispatch(c, msg)
	}
	cancel()
	if s.ctx.Err() != nil {
		_ = wsConn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	_ = wsConn.Close(websocket.StatusNormalClosure, "")
}

func (s *ServerState) register(c *connection) {
	s.wg.Add(1)
	s.mu.Lock()
	s.conns[c.id] = c
	count := len(s.conns)
	s.mu.Unlock()
	klog.Infof("Client %s connected from %s. Total clients: %d", c.id, c.addr, count)
}

// unregister removes the player from its room, as an implicit disconnect
// event, and forgets the connection.
func (s *ServerState) unregister(c *connection) {
	defer s.wg.Done()
	s.leaveRoom(c)
	s.mu.Lock()
	delete(s.conns, c.id)
	count := len(s.conns)
	s.mu.Unlock()
	klog.Infof("Client %s disconnected. Total clients: %d", c.id, count)
}

// dispatch runs the room operation matching msg on behalf of c. Rejections
// are reported to c only.
func (s *ServerState) dispatch(c *connection, msg game.WsMessage) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Recovered from panic handling %s from %s: %v", msg.Type, c.id, r)
		}
	}()

	p, err := msg.Parse()
	if err != nil {
		klog.Warningf("Invalid message from %s: %v", c.addr, err)
		s.sendError(c, "invalid message")
		return
	}
	klog.V(2).Infof("Received %s from %s: %+v", msg.Type, c.id, p)

	switch m := p.(type) {
	case *game.CreateRoomMessage:
		s.createRoom(c, m)
	case *game.JoinRoomMessage:
		err = s.joinRoom(c, m)
	case *game.RoomMessage:
		err = s.withRoom(m.RoomCode, func(r *room.Room) error {
			switch msg.Type {
			case game.MsgTypeToggleReady:
				return r.ToggleReady(c.id)
			case game.MsgTypeStartGame:
				return r.Start(c.id)
			case game.MsgTypeReturnToLobby:
				return r.ReturnToLobby(c.id)
			default: // game.MsgTypeRestartGame
				return r.Restart(c.id)
			}
		})
	case *game.UpdateSettingsMessage:
		err = s.withRoom(m.RoomCode, func(r *room.Room) error {
			return r.UpdateSettings(c.id, m.Settings)
		})
	case *game.ProgressMessage:
		err = s.withRoom(m.RoomCode, func(r *room.Room) error {
			return r.Progress(c.id, *m)
		})
		if errors.Is(err, room.ErrRoomNotFound) {
			// Late reports for a room that is gone.
			err = nil
		}
	default:
		err = fmt.Errorf("%s is not a client event", msg.Type)
	}
	s.reportError(c, msg.Type, err)
}

func (s *ServerState) reportError(c *connection, msgType game.MessageType, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, room.ErrNotMember) {
		// Typically a late message from a client that just left the room.
		klog.V(2).Infof("Ignoring %s from %s: %v", msgType, c.id, err)
		return
	}
	klog.V(1).Infof("Rejected %s from %s: %v", msgType, c.id, err)
	s.sendError(c, err.Error())
}

func (s *ServerState) sendError(c *connection, message string) {
	c.enqueue(game.MustWsMessage(game.MsgTypeError, game.ErrorMessage{Message: message}))
}

func (s *ServerState) withRoom(code string, fn func(r *room.Room) error) error {
	r, err := s.Rooms.Get(code)
	if err != nil {
		return err
	}
	return fn(r)
}

// createRoom opens a room with c as host. A connection is in at most one
// room, so c first leaves its current one.
func (s *ServerState) createRoom(c *connection, m *game.CreateRoomMessage) {
	s.leaveRoom(c)
	r := s.Rooms.Create(game.NewPlayer(c.id, m.Username, m.Emoji))
	c.roomCode = r.Code()
}

// joinRoom adds c to a room. On success c leaves its previous room, if any.
func (s *ServerState) joinRoom(c *connection, m *game.JoinRoomMessage) error {
	r, err := s.Rooms.Get(m.RoomCode)
	if err != nil {
		return err
	}
	if err := r.Join(game.NewPlayer(c.id, m.Username, m.Emoji)); err != nil {
		return err
	}
	s.leaveRoom(c)
	c.roomCode = r.Code()
	return nil
}

// leaveRoom removes c from its room, destroying the room if c was the last player.
func (s *ServerState) leaveRoom(c *connection) {
	if c.roomCode == "" {
		return
	}
	code := c.roomCode
	c.roomCode = ""
	r, err := s.Rooms.Get(code)
	if err != nil {
		return
	}
	empty, err := r.Leave(c.id)
	if err != nil {
		klog.V(2).Infof("Client %s leaving room %s: %v", c.id, code, err)
		return
	}
	if empty {
		s.Rooms.Remove(r)
	}
}

// Close disconnects every client and stops every room. It waits at most
// timeout for the connection goroutines to finish.
func (s *ServerState) Close(timeout time.Duration) error {
	s.cancel()
	s.Rooms.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
