package game

import (
	"fmt"
	"strings"
)

// GameMode selects what ends a race: a time limit or a fixed word count.
type GameMode string

const (
	ModeTime  GameMode = "time"  // Race ends when Settings.TimeLimit seconds elapsed.
	ModeWords GameMode = "words" // Race ends when everyone typed Settings.WordCount words.
)

// Valid reports whether m is one of the known game modes.
func (m GameMode) Valid() bool {
	return m == ModeTime || m == ModeWords
}

// Bounds accepted for Settings.
const (
	MaxTimeLimit = 3600
	MaxWordCount = 1000
)

// Settings of a room, changed by the host while in the lobby.
type Settings struct {
	GameMode  GameMode `json:"gameMode"`
	TimeLimit int      `json:"timeLimit"` // Seconds.
	WordCount int      `json:"wordCount"`
}

// DefaultSettings returns the settings a new room starts with.
func DefaultSettings() Settings {
	return Settings{GameMode: ModeTime, TimeLimit: 300, WordCount: 100}
}

// SettingsPatch holds the fields of an updateSettings request; nil fields are left untouched.
type SettingsPatch struct {
	GameMode  *GameMode `json:"gameMode,omitempty"`
	TimeLimit *int      `json:"timeLimit,omitempty"`
	WordCount *int      `json:"wordCount,omitempty"`
}

// Apply returns s with the non-nil fields of p merged in, or an error if the
// result would be invalid. s itself is never modified.
func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	if p.GameMode != nil {
		if !p.GameMode.Valid() {
			return s, fmt.Errorf("unknown game mode %q", *p.GameMode)
		}
		s.GameMode = *p.GameMode
	}
	if p.TimeLimit != nil {
		if *p.TimeLimit < 1 || *p.TimeLimit > MaxTimeLimit {
			return s, fmt.Errorf("time limit must be between 1 and %d seconds, got %d", MaxTimeLimit, *p.TimeLimit)
		}
		s.TimeLimit = *p.TimeLimit
	}
	if p.WordCount != nil {
		if *p.WordCount < 1 || *p.WordCount > MaxWordCount {
			return s, fmt.Errorf("word count must be between 1 and %d, got %d", MaxWordCount, *p.WordCount)
		}
		s.WordCount = *p.WordCount
	}
	return s, nil
}

// Player represents a user in a room, as broadcast to every client.
//
// The telemetry fields (Progress, WPM, Accuracy, CurrentWordIndex) are the
// latest values reported by the player's own client and are not verified.
type Player struct {
	ID               string  `json:"socketId"` // Connection identifier.
	Name             string  `json:"username"`
	Avatar           string  `json:"emoji"`
	Ready            bool    `json:"ready"`
	Progress         float64 `json:"progress"` // 0-100
	WPM              float64 `json:"wpm"`
	Accuracy         float64 `json:"accuracy"` // 0-100
	CurrentWordIndex int     `json:"currentWordIndex"`
	Finished         bool    `json:"finished"`
	FinishTime       *int64  `json:"finishTime"` // Unix milliseconds, nil until finished.
}

// NewPlayer returns a player with every race field at its lobby default.
func NewPlayer(id, name, avatar string) *Player {
	p := &Player{ID: id, Name: name, Avatar: avatar}
	p.Reset()
	return p
}

// Reset puts the transient race fields back to their lobby defaults.
func (p *Player) Reset() {
	p.Ready = false
	p.Progress = 0
	p.WPM = 0
	p.Accuracy = 100
	p.CurrentWordIndex = 0
	p.Finished = false
	p.FinishTime = nil
}

func (p *Player) String() string {
	return fmt.Sprintf("%s (%s, ready=%t, progress=%.0f, wpm=%.0f, finished=%t)",
		p.Name, p.ID, p.Ready, p.Progress, p.WPM, p.Finished)
}

// State of a room's lifecycle.
type State string

const (
	StateLobby     State = "lobby"
	StateCountdown State = "countdown"
	StateRacing    State = "racing"
	StateFinished  State = "finished"
)

// Snapshot is the full view of a room sent with lobby-type broadcasts.
type Snapshot struct {
	Players  []Player `json:"players"`
	Settings Settings `json:"settings"`
	Host     string   `json:"host"`
}

func (s Snapshot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "host=%s, settings=%+v, players: ", s.Host, s.Settings)
	for _, p := range s.Players {
		fmt.Fprintf(&sb, "%s, ", &p)
	}
	return sb.String()
}
