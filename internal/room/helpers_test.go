package room

import (
	"sync"
	"testing"

	"github.com/janpfeifer/TypeRace/internal/game"
	"github.com/stretchr/testify/require"
)

// recorder is a Sender that keeps every message, per connection.
type recorder struct {
	mu   sync.Mutex
	msgs map[string][]game.WsMessage
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]game.WsMessage)}
}

func (rec *recorder) Send(connID string, msg game.WsMessage) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.msgs[connID] = append(rec.msgs[connID], msg)
}

func (rec *recorder) messages(connID string) []game.WsMessage {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]game.WsMessage(nil), rec.msgs[connID]...)
}

func (rec *recorder) types(connID string) []game.MessageType {
	var types []game.MessageType
	for _, msg := range rec.messages(connID) {
		types = append(types, msg.Type)
	}
	return types
}

// ofType returns the messages of the given type sent to connID.
func (rec *recorder) ofType(connID string, msgType game.MessageType) []game.WsMessage {
	var found []game.WsMessage
	for _, msg := range rec.messages(connID) {
		if msg.Type == msgType {
			found = append(found, msg)
		}
	}
	return found
}

func (rec *recorder) reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.msgs = make(map[string][]game.WsMessage)
}

// payload parses msg and asserts its payload type.
func payload[T any](t *testing.T, msg game.WsMessage) *T {
	t.Helper()
	p, err := msg.Parse()
	require.NoError(t, err)
	typed, ok := p.(*T)
	require.Truef(t, ok, "unexpected payload type %T for %s", p, msg.Type)
	return typed
}

// setupRoom creates a registry and a room hosted by "p1", with the other ids
// joined in order. The recorder is reset before returning.
func setupRoom(t *testing.T, opts Options, others ...string) (*Registry, *Room, *recorder) {
	t.Helper()
	rec := newRecorder()
	reg := NewRegistry(rec, opts)
	r := reg.Create(game.NewPlayer("p1", "Player 1", "🐢"))
	for _, id := range others {
		require.NoError(t, r.Join(game.NewPlayer(id, "Player "+id, "🐇")))
	}
	rec.reset()
	return reg, r, rec
}

func ptr[T any](v T) *T {
	return &v
}
