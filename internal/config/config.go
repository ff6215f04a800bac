package config

import (
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// InMemoryPath selects an in-memory message log instead of a badger directory.
const InMemoryPath = ":memory:"

// Config aggregates the server configuration.
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	Env      string `env:"ENV,default=development" validate:"oneof=development production"`
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`

	BadgerPath string `env:"BADGER_PATH,default=graphtalk-data" validate:"required"`

	DefaultPageSize   int           `env:"DEFAULT_PAGE_SIZE,default=50" validate:"min=1"`
	MaxPageSize       int           `env:"MAX_PAGE_SIZE,default=100" validate:"gtefield=DefaultPageSize"`
	MaxSessions       int           `env:"MAX_SESSIONS_PER_ROOM,default=256" validate:"min=1"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,default=10000" validate:"min=1"`
	MailboxSize       int           `env:"MAILBOX_SIZE,default=64" validate:"min=1"`
	SessionBufferSize int           `env:"SESSION_BUFFER_SIZE,default=256" validate:"min=1"`
	IdleTimeout       time.Duration `env:"ROOM_IDLE_TIMEOUT,default=10m"`
	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL,default=1m" validate:"gt=0s"`
	EchoToSender      bool          `env:"ECHO_TO_SENDER,default=true"`

	Neo4jURI      string `env:"NEO4J_URI"`
	Neo4jUser     string `env:"NEO4J_USER,default=neo4j"`
	Neo4jPassword string `env:"NEO4J_PASSWORD"`
	GraphLabel    string `env:"GRAPH_LABEL,default=Graph" validate:"required,alphanum"`
}

// RoomConfig holds the per-room bounds and the registry's eviction policy.
// An IdleTimeout of zero disables eviction.
type RoomConfig struct {
	DefaultPageSize   int
	MaxPageSize       int
	MaxSessions       int
	MaxContentLength  int
	MailboxSize       int
	SessionBufferSize int
	IdleTimeout       time.Duration
	JanitorInterval   time.Duration
	EchoToSender      bool
}

// DefaultRoom returns the bounds produced by an empty environment.
func DefaultRoom() RoomConfig {
	return RoomConfig{
		DefaultPageSize:   50,
		MaxPageSize:       100,
		MaxSessions:       256,
		MaxContentLength:  10000,
		MailboxSize:       64,
		SessionBufferSize: 256,
		IdleTimeout:       10 * time.Minute,
		JanitorInterval:   time.Minute,
		EchoToSender:      true,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return Parse(es)
}

// Parse builds a validated Config from the given variables.
func Parse(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field bounds.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("config validation failed: ROOM_IDLE_TIMEOUT must not be negative")
	}
	return nil
}

// Room extracts the room bounds.
func (c *Config) Room() RoomConfig {
	return RoomConfig{
		DefaultPageSize:   c.DefaultPageSize,
		MaxPageSize:       c.MaxPageSize,
		MaxSessions:       c.MaxSessions,
		MaxContentLength:  c.MaxContentLength,
		MailboxSize:       c.MailboxSize,
		SessionBufferSize: c.SessionBufferSize,
		IdleTimeout:       c.IdleTimeout,
		JanitorInterval:   c.JanitorInterval,
		EchoToSender:      c.EchoToSender,
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GraphCheckEnabled reports whether room keys are checked against Neo4j.
func (c *Config) GraphCheckEnabled() bool {
	return c.Neo4jURI != ""
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
