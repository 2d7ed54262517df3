package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Music       MusicConfig       `toml:"music"`
	Playback    PlaybackConfig    `toml:"playback"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	LogLevel    string            `toml:"log_level"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig holds the public half of the Spotify OAuth client.
//
// The client secret never lives here: code exchange and refresh go through the music service proxy.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
	APIURL      string   `toml:"api_url"`
}

// MusicConfig points at the music service (REST, OAuth proxy and push channel).
type MusicConfig struct {
	APIURL    string `toml:"api_url"`
	WSURL     string `toml:"ws_url"`
	HiveID    string `toml:"hive_id"`
	AuthToken string `toml:"auth_token"`
}

// PlaybackConfig tunes the playback adapters.
type PlaybackConfig struct {
	DeviceName   string   `toml:"device_name"`
	PollInterval Duration `toml:"poll_interval"`
	Volume       float64  `toml:"volume"`
}

// AuthConfig tunes the token lifecycle.
type AuthConfig struct {
	RefreshAttempts   int      `toml:"refresh_attempts"`
	RefreshRetryDelay Duration `toml:"refresh_retry_delay"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the local OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for the callback listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration wraps [time.Duration] so it can be written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the config back to disk as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv loads .env files (missing files are ignored) and applies HIVEFM_* overrides.
func (c *Config) LoadEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overrides config values from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("HIVEFM_SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	str("HIVEFM_SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI)
	str("HIVEFM_MUSIC_API_URL", &c.Music.APIURL)
	str("HIVEFM_MUSIC_WS_URL", &c.Music.WSURL)
	str("HIVEFM_HIVE_ID", &c.Music.HiveID)
	str("HIVEFM_AUTH_TOKEN", &c.Music.AuthToken)
	str("HIVEFM_DEVICE_NAME", &c.Playback.DeviceName)
	str("HIVEFM_DATABASE_PATH", &c.Database.Path)
	str("HIVEFM_LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("HIVEFM_SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks the fields the playback core cannot run without.
func (c *Config) Validate() error {
	if c.Music.APIURL == "" {
		return fmt.Errorf("%w: music.api_url is required", ErrInvalidConfig)
	}
	if c.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: credentials.spotify.client_id is required", ErrMissingCredentials)
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return fmt.Errorf("%w: playback.volume must be within 0..1", ErrInvalidConfig)
	}
	return nil
}
