package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

// ConfigPathEnv overrides the client config location
const ConfigPathEnv = "CHECKIN_CONFIG"

// Config represents the client configuration
type Config struct {
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	Role            string `json:"role"`
	DataDir         string `json:"data_dir"`
	DatabaseType    string `json:"database_type"`
	StrongTokens    bool   `json:"strong_tokens"`
	DefaultValidity string `json:"default_validity,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := ".checkin-data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".checkin", "data")
	}

	return &Config{
		Role:         domain.RoleStudent.String(),
		DataDir:      dataDir,
		DatabaseType: "bolt",
	}
}

// Path returns the path to the configuration file
func Path() (string, error) {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".checkin", "config.json"), nil
}

// LoadConfig loads the configuration from the file system
func LoadConfig() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads configuration from a specific file. A missing file yields defaults.
func LoadConfigFrom(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the file system
func (c *Config) SaveConfig() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the configuration to a specific file
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetUser records the display name, minting a user ID the first time one is set
func (c *Config) SetUser(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("user name cannot be empty")
	}

	c.UserName = name
	if c.UserID == "" {
		c.UserID = domain.GenerateUserID()
	}
	return nil
}

// SetRole validates and records the role
func (c *Config) SetRole(role string) error {
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return err
	}
	c.Role = parsed.String()
	return nil
}

// Session builds the identity scans are attributed to
func (c *Config) Session() (domain.Session, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		UserID:   c.UserID,
		UserName: c.UserName,
		Role:     role,
	}
	if err := session.Validate(); err != nil {
		return domain.Session{}, fmt.Errorf("%w (run 'checkin config set-user <name>')", err)
	}
	return session, nil
}
