package game

import (
	"encoding/json"
	"fmt"
)

// Message type for WebSocket communication between client and server.
type MessageType string

// Client to server events.
const (
	MsgTypeCreateRoom     MessageType = "createRoom"     // Client creates a room and becomes its host
	MsgTypeJoinRoom       MessageType = "joinRoom"       // Client joins a room in the lobby
	MsgTypeToggleReady    MessageType = "toggleReady"    // Client flips its ready flag
	MsgTypeUpdateSettings MessageType = "updateSettings" // Host changes the room settings
	MsgTypeStartGame      MessageType = "startGame"      // Host starts the countdown
	MsgTypeProgress       MessageType = "progressUpdate" // Client reports race telemetry
	MsgTypeReturnToLobby  MessageType = "returnToLobby"  // Any player sends the room back to the lobby
	MsgTypeRestartGame    MessageType = "restartGame"    // Host sends the room back to the lobby
)

// Server to client messages.
const (
	MsgTypeRoomCreated     MessageType = "roomCreated"     // Private: room created, requester is host
	MsgTypeRoomJoined      MessageType = "roomJoined"      // Private: requester joined the room
	MsgTypeLobbyUpdate     MessageType = "lobbyUpdate"     // Full roster and settings
	MsgTypeCountdownStart  MessageType = "countdownStart"  // First countdown count
	MsgTypeCountdownTick   MessageType = "countdownTick"   // Following countdown counts
	MsgTypeGameStart       MessageType = "gameStart"       // Race words, settings and start time
	MsgTypeTimerUpdate     MessageType = "timerUpdate"     // Race clock, once per second in time mode
	MsgTypePlayerProgress  MessageType = "playerProgress"  // One player's telemetry
	MsgTypeGameEnd         MessageType = "gameEnd"         // Final leaderboard
	MsgTypeReturnedToLobby MessageType = "returnedToLobby" // Room reset to the lobby
	MsgTypeGameRestart     MessageType = "gameRestart"     // Room reset to the lobby by the host
	MsgTypeHostChanged     MessageType = "hostChanged"     // Host left, someone else is host now
	MsgTypeError           MessageType = "error"           // Private: a request was rejected
)

// WsMessage represents a WebSocket message.
type WsMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWsMessage creates a new WsMessage with a marshaled payload.
func NewWsMessage(msgType MessageType, payload interface{}) (WsMessage, error) {
	if payload == nil {
		return WsMessage{Type: msgType}, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return WsMessage{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return WsMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}, nil
}

// MustWsMessage is like NewWsMessage, but panics on error.
// Only use it with payload types defined in this package, which always marshal.
func MustWsMessage(msgType MessageType, payload interface{}) WsMessage {
	msg, err := NewWsMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Parse unmarshals the message payload into one of the message types (JoinRoomMessage, LobbyMessage, etc.)
func (m *WsMessage) Parse() (any, error) {
	var target any
	switch m.Type {
	case MsgTypeCreateRoom:
		target = &CreateRoomMessage{}
	case MsgTypeJoinRoom:
		target = &JoinRoomMessage{}
	case MsgTypeToggleReady, MsgTypeStartGame, MsgTypeReturnToLobby, MsgTypeRestartGame:
		target = &RoomMessage{}
	case MsgTypeUpdateSettings:
		target = &UpdateSettingsMessage{}
	case MsgTypeProgress:
		target = &ProgressMessage{}
	case MsgTypeRoomCreated, MsgTypeRoomJoined:
		target = &RoomEnteredMessage{}
	case MsgTypeLobbyUpdate, MsgTypeReturnedToLobby, MsgTypeGameRestart:
		target = &Snapshot{}
	case MsgTypeCountdownStart, MsgTypeCountdownTick:
		target = &CountdownMessage{}
	case MsgTypeGameStart:
		target = &GameStartMessage{}
	case MsgTypeTimerUpdate:
		target = &TimerMessage{}
	case MsgTypePlayerProgress:
		target = &PlayerProgressMessage{}
	case MsgTypeGameEnd:
		target = &GameEndMessage{}
	case MsgTypeHostChanged:
		target = &HostChangedMessage{}
	case MsgTypeError:
		target = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", m.Type)
	}

	if len(m.Payload) == 0 {
		return target, nil
	}

	err := json.Unmarshal(m.Payload, target)
	return target, err
}

// CreateRoomMessage is the payload for MsgTypeCreateRoom
type CreateRoomMessage struct {
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// JoinRoomMessage is the payload for MsgTypeJoinRoom
type JoinRoomMessage struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// RoomMessage is the payload of the events that only name the room:
// MsgTypeToggleReady, MsgTypeStartGame, MsgTypeReturnToLobby and MsgTypeRestartGame.
type RoomMessage struct {
	RoomCode string `json:"roomCode"`
}

// UpdateSettingsMessage is the payload for MsgTypeUpdateSettings
type UpdateSettingsMessage struct {
	RoomCode string        `json:"roomCode"`
	Settings SettingsPatch `json:"settings"`
}

// ProgressMessage is the payload for MsgTypeProgress
type ProgressMessage struct {
	RoomCode         string  `json:"roomCode"`
	Progress         float64 `json:"progress"`
	WPM              float64 `json:"wpm"`
	Accuracy         float64 `json:"accuracy"`
	CurrentWordIndex int     `json:"currentWordIndex"`
	Finished         bool    `json:"finished"`
	FinishTime       int64   `json:"finishTime,omitempty"` // Unix milliseconds
}

// RoomEnteredMessage is the payload for MsgTypeRoomCreated and MsgTypeRoomJoined
type RoomEnteredMessage struct {
	RoomCode string `json:"roomCode"`
	Player   Player `json:"player"`
	IsHost   bool   `json:"isHost"`
}

// CountdownMessage is the payload for MsgTypeCountdownStart and MsgTypeCountdownTick
type CountdownMessage struct {
	Count int `json:"count"`
}

// GameStartMessage is the payload for MsgTypeGameStart
type GameStartMessage struct {
	Words     []string `json:"words"`
	Settings  Settings `json:"settings"`
	StartTime int64    `json:"startTime"` // Unix milliseconds
}

// TimerMessage is the payload for MsgTypeTimerUpdate
type TimerMessage struct {
	Remaining int `json:"remaining"` // Seconds
	Elapsed   int `json:"elapsed"`   // Seconds
}

// PlayerProgressMessage is the payload for MsgTypePlayerProgress
type PlayerProgressMessage struct {
	PlayerID string  `json:"socketId"`
	Progress float64 `json:"progress"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
}

// GameEndMessage is the payload for MsgTypeGameEnd
type GameEndMessage struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// HostChangedMessage is the payload for MsgTypeHostChanged
type HostChangedMessage struct {
	NewHost string `json:"newHost"`
}

// ErrorMessage is the payload for MsgTypeError
type ErrorMessage struct {
	Message string `json:"message"`
}
