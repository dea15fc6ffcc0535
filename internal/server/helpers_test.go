package server

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/TypeRace/internal/game"
)

// pipeListener serves HTTP connections over net.Pipe
type pipeListener struct {
	ch   chan net.Conn
	done chan struct{}
}

func newPipeListener() *pipeListener {
	return &pipeListener{ch: make(chan net.Conn, 10), done: make(chan struct{})}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return &net.TCPAddr{} }

// dialOptions returns options to dial through the listener instead of the network.
func (l *pipeListener) dialOptions() *websocket.DialOptions {
	return &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					cli, srv := net.Pipe()
					l.ch <- srv
					return cli, nil
				},
			},
		},
	}
}

// testClient is a player's connection to the server.
type testClient struct {
	t    *testing.T
	ctx  context.Context
	name string
	conn *websocket.Conn
}

func dial(t *testing.T, ctx context.Context, name, url string, opts *websocket.DialOptions) *testClient {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		t.Fatalf("%s: dial error: %v", name, err)
	}
	return &testClient{t: t, ctx: ctx, name: name, conn: conn}
}

func (c *testClient) send(msgType game.MessageType, payload any) {
	c.t.Helper()
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("%s: failed to create %s message: %v", c.name, msgType, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, msg); err != nil {
		c.t.Fatalf("%s: failed to send %s: %v", c.name, msgType, err)
	}
}

// next reads the next message and parses its payload.
func (c *testClient) next() (game.MessageType, any) {
	c.t.Helper()
	var msg game.WsMessage
	if err := wsjson.Read(c.ctx, c.conn, &msg); err != nil {
		c.t.Fatalf("%s: failed to read message: %v", c.name, err)
	}
	p, err := msg.Parse()
	if err != nil {
		c.t.Fatalf("%s: failed to parse %s payload: %v", c.name, msg.Type, err)
	}
	return msg.Type, p
}

// nextIs reads the next message and fails unless it has the given type.
func (c *testClient) nextIs(msgType game.MessageType) any {
	c.t.Helper()
	got, p := c.next()
	if got != msgType {
		c.t.Fatalf("%s: expected %s message, got %s: %+v", c.name, msgType, got, p)
	}
	return p
}

// expect reads messages until one of the given type arrives, skipping the others.
func (c *testClient) expect(msgType game.MessageType) any {
	c.t.Helper()
	for {
		got, p := c.next()
		if got == msgType {
			return p
		}
	}
}

func (c *testClient) close() {
	_ = c.conn.CloseNow()
}
