package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/janpfeifer/TypeRace/internal/game"
	"github.com/janpfeifer/TypeRace/internal/room"
)

// Config holds the server settings. It is loaded from the environment, see LoadConfig.
type Config struct {
	// Addr to listen on. Empty means an automatically chosen port on localhost.
	Addr string `env:"RACE_ADDR" envDefault:":3001"`

	// AllowedOrigins are host patterns (path.Match syntax) accepted for
	// cross-origin WebSocket connections. "*" accepts any origin.
	AllowedOrigins []string `env:"RACE_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	MaxMessageBytes int64         `env:"RACE_MAX_MESSAGE_BYTES" envDefault:"4096"`
	RateLimit       float64       `env:"RACE_RATE_LIMIT" envDefault:"20"` // Events per second, per connection.
	RateBurst       int           `env:"RACE_RATE_BURST" envDefault:"40"`
	SendBuffer      int           `env:"RACE_SEND_BUFFER" envDefault:"256"`
	PingInterval    time.Duration `env:"RACE_PING_INTERVAL" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"RACE_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// Room lifecycle.
	MinPlayers       int    `env:"RACE_MIN_PLAYERS" envDefault:"1"`
	CountdownFrom    int    `env:"RACE_COUNTDOWN_FROM" envDefault:"5"`
	TimeModeWords    int    `env:"RACE_TIME_MODE_WORDS" envDefault:"200"`
	DefaultMode      string `env:"RACE_DEFAULT_MODE" envDefault:"time"`
	DefaultTimeLimit int    `env:"RACE_DEFAULT_TIME_LIMIT" envDefault:"300"`
	DefaultWordCount int    `env:"RACE_DEFAULT_WORD_COUNT" envDefault:"100"`
}

// DefaultConfig returns the configuration with every default value, ignoring
// the environment, and an empty Addr.
func DefaultConfig() Config {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	cfg.Addr = ""
	return cfg
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c Config) Validate() error {
	var errs []error
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("RACE_ALLOWED_ORIGINS must list at least one origin pattern"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("RACE_MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("RACE_RATE_LIMIT and RACE_RATE_BURST must be positive, got %v and %d", c.RateLimit, c.RateBurst))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("RACE_SEND_BUFFER must be positive, got %d", c.SendBuffer))
	}
	if c.PingInterval <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RACE_PING_INTERVAL and RACE_SHUTDOWN_TIMEOUT must be positive, got %s and %s", c.PingInterval, c.ShutdownTimeout))
	}
	if c.MinPlayers < 1 || c.CountdownFrom < 1 || c.TimeModeWords < 1 {
		errs = append(errs, fmt.Errorf("RACE_MIN_PLAYERS, RACE_COUNTDOWN_FROM and RACE_TIME_MODE_WORDS must be at least 1, got %d, %d and %d",
			c.MinPlayers, c.CountdownFrom, c.TimeModeWords))
	}
	if _, err := c.defaultSettings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) defaultSettings() (game.Settings, error) {
	mode := game.GameMode(c.DefaultMode)
	settings, err := game.Settings{}.Apply(game.SettingsPatch{
		GameMode:  &mode,
		TimeLimit: &c.DefaultTimeLimit,
		WordCount: &c.DefaultWordCount,
	})
	if err != nil {
		return game.Settings{}, fmt.Errorf("default room settings: %w", err)
	}
	return settings, nil
}

// RoomOptions returns the options rooms are created with.
func (c Config) RoomOptions() room.Options {
	opts := room.DefaultOptions()
	opts.MinPlayers = c.MinPlayers
	opts.CountdownFrom = c.CountdownFrom
	opts.TimeModeWords = c.TimeModeWords
	if settings, err := c.defaultSettings(); err == nil {
		opts.Settings = settings
	}
	return opts
}
