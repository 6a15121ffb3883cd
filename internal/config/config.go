package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Port        string `env:"PORT" envDefault:"3000"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"50051"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"*"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"memory"`
	SQLiteFile  string `env:"SQLITE_FILE" envDefault:"dev.sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`

	NATSMode    string `env:"NATS_MODE"` // embedded, external or mock
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"pit.events"`
	NATSStream  string `env:"NATS_STREAM" envDefault:"PIT_EVENTS"`

	ClickHouseAddr     string `env:"CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	ClickHouseDB       string `env:"CLICKHOUSE_DB" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`

	LoreFile string `env:"LORE_FILE"`

	Game GameConfig
}

// MaxRumbleSize is the largest pit a rumble supports.
const MaxRumbleSize = 3

// GameConfig carries the tunable rules of the pit.
type GameConfig struct {
	ReplayInterval  time.Duration `env:"REPLAY_INTERVAL" envDefault:"3s"`
	HouseFeePercent int           `env:"HOUSE_FEE_PERCENT" envDefault:"5"`
	MinStake        int           `env:"MIN_STAKE" envDefault:"50"`
	MaxParticipants int           `env:"MAX_PARTICIPANTS" envDefault:"3"`
	StartingBalance int           `env:"STARTING_BALANCE" envDefault:"5000"`
	ForgeCost       int           `env:"FORGE_COST" envDefault:"1000"`
}

// IsDevelopment reports whether in-process stand-ins replace external infrastructure.
func (c Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

// EventBusMode resolves NATS_MODE. Development defaults to an embedded server.
func (c Config) EventBusMode() string {
	if c.NATSMode != "" {
		return c.NATSMode
	}
	if c.IsDevelopment() {
		return "embedded"
	}
	return "external"
}

// Load reads an optional .env file and then parses the environment into a Config.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects rule combinations the pit cannot run with.
func (c Config) Validate() error {
	g := c.Game
	switch {
	case g.ReplayInterval <= 0:
		return fmt.Errorf("REPLAY_INTERVAL must be positive, got %s", g.ReplayInterval)
	case g.HouseFeePercent < 0 || g.HouseFeePercent > 100:
		return fmt.Errorf("HOUSE_FEE_PERCENT must be within 0..100, got %d", g.HouseFeePercent)
	case g.MinStake <= 0:
		return fmt.Errorf("MIN_STAKE must be positive, got %d", g.MinStake)
	case g.MaxParticipants < 1 || g.MaxParticipants > MaxRumbleSize:
		return fmt.Errorf("MAX_PARTICIPANTS must be within 1..%d, got %d", MaxRumbleSize, g.MaxParticipants)
	case g.ForgeCost < 0 || g.ForgeCost > g.StartingBalance:
		return fmt.Errorf("FORGE_COST must be within 0..STARTING_BALANCE, got %d", g.ForgeCost)
	}

	switch c.DBDriver {
	case "memory", "sqlite":
	case "postgres":
		// development falls back to the sqlite-backed postgres mock
		if c.DatabaseURL == "" && !c.IsDevelopment() {
			return errors.New("DATABASE_URL environment variable is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER: %s (valid: memory, sqlite, postgres)", c.DBDriver)
	}

	switch c.EventBusMode() {
	case "embedded", "external", "mock":
	default:
		return fmt.Errorf("unknown NATS_MODE: %s (valid: embedded, external, mock)", c.NATSMode)
	}
	return nil
}
