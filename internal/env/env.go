package env

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// AllowedMethods gates which HTTP verbs the /bom endpoint accepts.
type AllowedMethods struct {
	Get    bool `envconfig:"ALLOWEDMETHODS__GET" default:"true"`
	Post   bool `envconfig:"ALLOWEDMETHODS__POST" default:"false"`
	Delete bool `envconfig:"ALLOWEDMETHODS__DELETE" default:"false"`
}

// Retention configures the background GC sweeper.
type Retention struct {
	MaxVersions int    `envconfig:"RETENTION__MAXVERSIONS"`
	MaxAgeDays  int    `envconfig:"RETENTION__MAXAGEDAYS"`
	Interval    string `envconfig:"RETENTION__INTERVAL" default:"1h"`
	TmpMaxAge   string `envconfig:"RETENTION__TMPMAXAGE" default:"15m"`
}

// Config is the repository server's full configuration surface.
type Config struct {
	Directory      string
	AllowedMethods AllowedMethods
	Retention      Retention
	Port           int
	LogLevel       slog.Level
}

// rawConfig mirrors Config for envconfig.Process: LogLevel is read as
// a plain string because envconfig only special-cases Decoder/Setter
// plus a hardcoded time.Duration check. It never consults
// encoding.TextUnmarshaler, which is all slog.Level implements, so
// tagging the field as slog.Level directly would fall through to
// envconfig's generic reflect.Int branch and fail to parse "INFO".
// Retention.Interval/TmpMaxAge sidestep this same limitation two
// fields away by staying strings and being parsed with
// time.ParseDuration by their caller instead of by envconfig.
type rawConfig struct {
	Directory      string `envconfig:"REPO__DIRECTORY" required:"true"`
	AllowedMethods AllowedMethods
	Retention      Retention
	Port           int    `envconfig:"LISTEN__PORT" default:"8080"`
	LogLevel       string `envconfig:"LOG__LEVEL" default:"INFO"`
}

// New loads Config from the environment, applying validation that
// envconfig struct tags cannot express on their own.
func New() (Config, error) {
	var raw rawConfig
	if err := envconfig.Process("", &raw); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(raw.Directory) == "" {
		return Config{}, errors.New("environment variable `REPO__DIRECTORY` must not contain only whitespace characters")
	}

	if raw.Retention.MaxVersions < 0 {
		return Config{}, errors.New("environment variable `RETENTION__MAXVERSIONS` must not be negative")
	}
	if raw.Retention.MaxAgeDays < 0 {
		return Config{}, errors.New("environment variable `RETENTION__MAXAGEDAYS` must not be negative")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw.LogLevel)); err != nil {
		return Config{}, fmt.Errorf("environment variable `LOG__LEVEL` is invalid: %w", err)
	}

	return Config{
		Directory:      raw.Directory,
		AllowedMethods: raw.AllowedMethods,
		Retention:      raw.Retention,
		Port:           raw.Port,
		LogLevel:       level,
	}, nil
}
