package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/danielhkuo/quickly-buzz/db"
	"github.com/danielhkuo/quickly-buzz/keyenc"
	"github.com/danielhkuo/quickly-buzz/round"
)

// StoreConfig selects the shared store and the round namespace inside it.
// Both the server and the buzz client read it.
type StoreConfig struct {
	StoreType     string `env:"STORE_TYPE" envDefault:"sqlite"`
	StoreURL      string `env:"STORE_URL"`
	Namespace     string `env:"NAMESPACE" envDefault:"quizBuzzer"`
	SecondSlot    bool   `env:"SECOND_SLOT" envDefault:"true"`
	WinnerBonus   int    `env:"WINNER_BONUS"`
	RunnerUpBonus int    `env:"RUNNER_UP_BONUS"`
}

type Config struct {
	StoreConfig
	Port             int    `env:"PORT" envDefault:"3318"`
	ModeratorKeySalt string `env:"MODERATOR_KEY_SALT"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
}

// Round returns the round variant and bonuses.
func (c StoreConfig) Round() round.Config {
	return round.Config{
		SecondSlot:    c.SecondSlot,
		WinnerBonus:   c.WinnerBonus,
		RunnerUpBonus: c.RunnerUpBonus,
	}
}

// Validate checks the store kind and namespace.
func (c StoreConfig) Validate() error {
	if !slices.Contains(db.Kinds(), strings.ToLower(c.StoreType)) {
		return fmt.Errorf("invalid STORE_TYPE %q (want one of %s)", c.StoreType, strings.Join(db.Kinds(), ", "))
	}
	if !keyenc.ValidKey(c.Namespace) {
		return fmt.Errorf("invalid NAMESPACE %q", c.Namespace)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return l, nil
}

// LoadDotEnv reads .env into the environment. Variables already set win.
// A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadStoreConfig reads the store settings from .env and the environment.
func LoadStoreConfig() (StoreConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return StoreConfig{}, err
	}
	var cfg StoreConfig
	if err := env.Parse(&cfg); err != nil {
		return StoreConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseFlags reads .env, then the environment, then flags. Flags win.
func ParseFlags(args []string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("quickly-buzz", flag.ContinueOnError)

	// Network and store (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.StoreType, "t", cfg.StoreType, "Store type ("+strings.Join(db.Kinds(), ", ")+")")
	fs.StringVar(&cfg.StoreURL, "d", cfg.StoreURL, "Store URL or SQLite file")
	fs.StringVar(&cfg.Namespace, "ns", cfg.Namespace, "Round namespace")
	fs.BoolVar(&cfg.SecondSlot, "second-slot", cfg.SecondSlot, "Accept a runner-up after the winner")
	fs.IntVar(&cfg.WinnerBonus, "winner-bonus", cfg.WinnerBonus, "Points awarded to the winner")
	fs.IntVar(&cfg.RunnerUpBonus, "runner-up-bonus", cfg.RunnerUpBonus, "Points awarded to the runner-up")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ModeratorKeySalt, "moderator-salt", cfg.ModeratorKeySalt, "Moderator key salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}

	// Secrets - MUST be provided
	if cfg.ModeratorKeySalt == "" {
		return Config{}, errors.New("MODERATOR_KEY_SALT required")
	}

	return cfg, nil
}
