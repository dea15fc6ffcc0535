package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/TypeRace/internal/game"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

const writeTimeout = 10 * time.Second

// connection is one client WebSocket.
//
// Outgoing messages are queued on send and written by writePump, so a slow
// client never blocks a room. Incoming messages are read and dispatched by
// the HandleWS goroutine, which is also the only one touching roomCode.
type connection struct {
	id      string
	addr    string
	conn    *websocket.Conn
	send    chan game.WsMessage
	limiter *rate.Limiter
	cancel  context.CancelFunc

	// roomCode of the room this connection is a player of, if any.
	roomCode string
}

// enqueue queues msg for writing. If the queue is full the client is not
// keeping up and the connection is dropped.
func (c *connection) enqueue(msg game.WsMessage) {
	select {
	case c.send <- msg:
	default:
		klog.Warningf("Send buffer full for %s (%s); dropping connection", c.id, c.addr)
		c.cancel()
	}
}

// writePump writes queued messages in order and pings the client
// periodically, until ctx is done or a write fails.
func (c *connection) writePump(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.cancel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				if !isExpectedCloseError(ctx, err) {
					klog.Errorf("Error writing %s to %s: %v", msg.Type, c.addr, err)
				}
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if !isExpectedCloseError(ctx, err) {
					klog.Warningf("Ping to %s failed: %v", c.addr, err)
				}
				return
			}
		}
	}
}

// read reads the next message. ok is false when the connection should be closed.
func (c *connection) read(ctx context.Context) (msg game.WsMessage, ok bool) {
	err := wsjson.Read(ctx, c.conn, &msg)
	if err == nil {
		return msg, true
	}

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		klog.V(1).Infof("Client %s disconnected: %v", c.addr, err)
	case status == websocket.StatusMessageTooBig:
		klog.Warningf("Message from %s exceeded the maximum size", c.addr)
	case isExpectedCloseError(ctx, err):
		klog.V(1).Infof("Client %s connection closed: %v", c.addr, err)
	default:
		klog.Warningf("WebSocket read error from %s: %v", c.addr, err)
	}
	return msg, false
}

// allow reports whether the client is within its rate limit.
func (c *connection) allow() bool {
	if c.limiter.Allow() {
		return true
	}
	klog.Warningf("Rate limit exceeded for %s (%s); discarding message", c.id, c.addr)
	return false
}

// isExpectedCloseError reports whether err is the consequence of the
// connection being closed on purpose, by us or by the peer.
func isExpectedCloseError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
