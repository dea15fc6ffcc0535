package room

import (
	"slices"
	"sync"

	"github.com/janpfeifer/TypeRace/internal/game"
	"k8s.io/klog/v2"
)

// Registry maps room codes to the live rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	sender  Sender
	opts    Options
	newCode func() string
}

// NewRegistry creates an empty registry. Rooms it creates deliver their
// messages through sender.
func NewRegistry(sender Sender, opts Options) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		sender:  sender,
		opts:    opts.sanitized(),
		newCode: NewCode,
	}
}

// Create opens a new room with host as its only player, under a code not
// used by any other live room. The host is sent the creation acknowledgement
// and the first lobby snapshot.
func (reg *Registry) Create(host *game.Player) *Room {
	reg.mu.Lock()
	code := reg.newCode()
	for reg.rooms[code] != nil {
		code = reg.newCode()
	}
	r := newRoom(code, host, reg.sender, reg.opts)
	reg.rooms[code] = r
	count := len(reg.rooms)
	reg.mu.Unlock()

	klog.Infof("Room %s created by %s. Total rooms: %d", code, host.Name, count)
	r.created()
	return r
}

// Get returns the live room with the given code. The lookup is case-insensitive.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[NormalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove deletes r from the registry, if it is still registered under its code.
func (reg *Registry) Remove(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[r.code] != r {
		return
	}
	delete(reg.rooms, r.code)
	klog.Infof("Room %s destroyed. Total rooms: %d", r.code, len(reg.rooms))
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Codes returns the codes of the live rooms, sorted.
func (reg *Registry) Codes() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Close stops every room and empties the registry.
func (reg *Registry) Close() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	klog.Infof("Closed %d rooms", len(rooms))
}
