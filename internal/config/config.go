package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DM       DMConfig       `yaml:"dm"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Users    []Credential   `yaml:"users"`
	Admins   []AdminUser    `yaml:"admins"`
}

// ServerConfig represents server identification
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DMConfig represents the device-management endpoint configuration
type DMConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ContentType string `yaml:"content_type"`
	MaxBodySize int64  `yaml:"max_body_size"`

	// Codec selects the wire encoding: "wbxml" (default) shells out to the
	// libwbxml tools, "xml" speaks plain XML for simulators and debugging.
	Codec           string `yaml:"codec"`
	WBXMLDecodeTool string `yaml:"wbxml_decode_tool"`
	WBXMLEncodeTool string `yaml:"wbxml_encode_tool"`

	// SessionTTL evicts sessions idle longer than this; zero retains
	// sessions for the process lifetime.
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	InfoPage      string `yaml:"info_page"`
	ErrorRedirect string `yaml:"error_redirect"`

	Prompts PromptsConfig `yaml:"prompts"`
}

// PromptsConfig carries the device-facing texts. These are presentation
// content, not logic; defaults reproduce the reference deployment.
type PromptsConfig struct {
	ConfirmText       string `yaml:"confirm_text"` // %s is the offered version
	ConfirmMinDisplay string `yaml:"confirm_min_display"`
	AlertText         string `yaml:"alert_text"`
	AlertMinDisplay   string `yaml:"alert_min_display"`
}

// Credential is one recognized device user: the login/password the device
// asserts plus the identity the server signs response MACs with.
type Credential struct {
	Login          string `yaml:"login"`
	Password       string `yaml:"password"`
	ServerLogin    string `yaml:"server_login"`
	ServerPassword string `yaml:"server_password"`
}

// AdminUser is an ops API account. PasswordHash is bcrypt.
type AdminUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// APIConfig represents the ops API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration for the ops API
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with the reference behavior baked in.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Name: "swuota-server", Version: "dev"},
		DM: DMConfig{
			Host:          "0.0.0.0",
			Port:          9999,
			ContentType:   "application/vnd.syncml.dm+wbxml",
			MaxBodySize:   100 * 1024,
			Codec:         "wbxml",
			SweepInterval: time.Minute,
			ErrorRedirect: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		API: APIConfig{Host: "0.0.0.0", Port: 8080},
		JWT: JWTConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
	cfg.DM.Prompts = DefaultPrompts()
	return cfg
}

// DefaultPrompts returns the reference prompt texts.
func DefaultPrompts() PromptsConfig {
	return PromptsConfig{
		ConfirmText:       "Firmware-Update gefunden: SVN:%s. Es müssen 1,3 MB heruntergeladen werden. Weitermachen?",
		ConfirmMinDisplay: "MINDT=60",
		AlertText:         "Error! Please, see more info at: https://global-repair-management.com/error9379992",
		AlertMinDisplay:   "MINDT=300",
	}
}

// Load loads configuration from file, applying defaults and environment
// overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

func (c *Config) validate() error {
	switch c.DM.Codec {
	case "wbxml", "xml":
	default:
		return fmt.Errorf("invalid dm codec: %s", c.DM.Codec)
	}

	if c.DM.MaxBodySize <= 0 {
		return fmt.Errorf("dm max_body_size must be positive")
	}

	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.Login == "" {
			return fmt.Errorf("user with empty login")
		}
		if seen[u.Login] {
			return fmt.Errorf("duplicate user login: %s", u.Login)
		}
		seen[u.Login] = true
	}

	return nil
}

// UserMap indexes the credential records by login.
func (c *Config) UserMap() map[string]Credential {
	users := make(map[string]Credential, len(c.Users))
	for _, u := range c.Users {
		users[u.Login] = u
	}
	return users
}
