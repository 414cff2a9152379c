package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ServerConfig holds everything the HTTP server needs at startup
type ServerConfig struct {
	Port            int
	DataDir         string
	DatabaseType    string
	Debug           bool
	LogFormat       string
	DefaultValidity time.Duration
	StrongTokens    bool
	Location        *time.Location
}

// LoadEnvFile loads KEY=VALUE pairs from an optional .env file without
// overriding variables that are already set
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ParseServerFlags reads flags, falling back to environment variables. Flags win over env.
func ParseServerFlags(args []string, logger *logrus.Logger) (ServerConfig, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var cfg ServerConfig
	var timezone string

	flags := flag.NewFlagSet("checkin-server", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", 0, "HTTP port (env PORT, default 8080)")
	flags.StringVar(&cfg.DataDir, "data-dir", "", "Directory used for persistent data (env CHECKIN_DATA_DIR)")
	flags.StringVar(&cfg.DatabaseType, "db", "", "Database backend: badger, bolt or memory (env CHECKIN_DB_TYPE)")
	flags.StringVar(&timezone, "timezone", "", "IANA zone defining a calendar day for participation (env CHECKIN_TIMEZONE)")

	if err := flags.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return ServerConfig{}, fmt.Errorf("invalid PORT env variable %q", portStr)
			}
			cfg.Port = port
		} else {
			cfg.Port = 8080
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = os.Getenv("CHECKIN_DATA_DIR")
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("CHECKIN_DB_TYPE")
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = "badger"
	}
	if cfg.DataDir == "" && cfg.DatabaseType != "memory" {
		return ServerConfig{}, errors.New("data directory required (use -data-dir or CHECKIN_DATA_DIR env)")
	}

	cfg.Debug = os.Getenv("DEBUG") == "true"
	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.DefaultValidity = ParseDurationOrDefault("CHECKIN_DEFAULT_VALIDITY", 0, logger)
	cfg.StrongTokens = os.Getenv("CHECKIN_STRONG_TOKENS") == "true"

	if timezone == "" {
		timezone = os.Getenv("CHECKIN_TIMEZONE")
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg.Location = loc

	return cfg, nil
}

// LoadLocation resolves a zone name; empty means the host's local zone
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseDurationOrDefault reads a duration from the environment, warning and
// falling back when it does not parse
func ParseDurationOrDefault(envKey string, fallback time.Duration, logger *logrus.Logger) time.Duration {
	rawValue := os.Getenv(envKey)
	if rawValue == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(rawValue)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"env_key":   envKey,
			"env_value": rawValue,
			"fallback":  fallback.String(),
		}).Warn("Invalid duration configuration; using fallback")
		return fallback
	}

	return parsed
}
