package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port           int      `env:"PORT" env-default:"3000"`
	LogLevel       string   `env:"LOG_LEVEL" env-default:"info"`
	LogFormat      string   `env:"LOG_FORMAT" env-default:"json"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	// Empty disables the round-result archive.
	DatabaseURL string `env:"DATABASE_URL"`

	Rooms  Rooms
	Limits Limits
}

type Rooms struct {
	CountdownDelay     time.Duration `env:"COUNTDOWN_DELAY" env-default:"3s"`
	DefaultMaxPlayers  int           `env:"DEFAULT_MAX_PLAYERS" env-default:"8"`
	DefaultDuration    int           `env:"DEFAULT_ROUND_SECONDS" env-default:"300"`
	StrictRushMoves    bool          `env:"STRICT_RUSH_MOVES" env-default:"false"`
	GeneratorStepLimit int           `env:"GENERATOR_STEP_LIMIT" env-default:"2000000"`
	EmptyRoomTTL       time.Duration `env:"EMPTY_ROOM_TTL" env-default:"2m"`
}

type Limits struct {
	MessagesPerSecond float64       `env:"RATE_LIMIT_PER_SECOND" env-default:"20"`
	Burst             int           `env:"RATE_LIMIT_BURST" env-default:"40"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" env-default:"5s"`
}

// Load reads the configuration from the environment (and .env, if present).
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("unable to read config from environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is Load that panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Rooms.DefaultMaxPlayers < 1 {
		return fmt.Errorf("DEFAULT_MAX_PLAYERS must be at least 1, got %d", c.Rooms.DefaultMaxPlayers)
	}
	if c.Rooms.CountdownDelay < 0 {
		return fmt.Errorf("COUNTDOWN_DELAY must not be negative")
	}
	if c.Limits.MessagesPerSecond <= 0 || c.Limits.Burst < 1 {
		return fmt.Errorf("rate limit must be positive (got %.2f/s burst %d)", c.Limits.MessagesPerSecond, c.Limits.Burst)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
