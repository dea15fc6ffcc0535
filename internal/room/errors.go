package room

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotAllReady      = errors.New("not all players are ready")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNotMember        = errors.New("not a member of this room")
	ErrAlreadyInRoom    = errors.New("already in this room")
	ErrInvalidSettings  = errors.New("invalid settings")
	ErrWrongState       = errors.New("not allowed at this point of the game")
)
