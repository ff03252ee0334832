package fintrack

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fintrack/fintrack/pkg/constants"
)

const (
	EnvStoreURL = "FINTRACK_STORE_URL"
	EnvToken    = "FINTRACK_TOKEN"
	EnvLogPath  = "FINTRACK_LOG_PATH"
	EnvLogLevel = "FINTRACK_LOG_LEVEL"
	EnvDebug    = "FINTRACK_DEBUG"
	EnvTimeout  = "FINTRACK_TIMEOUT"

	DefaultStoreURL = "memory://"
	DefaultLogLevel = "info"
)

// Config selects the store and tunes the client.
type Config struct {
	// StoreURL picks the store by scheme: memory://, ws:// or wss:// for a
	// fintrackd server, postgres:// for a database.
	StoreURL string
	// Token authenticates the websocket session of a remote store.
	Token string
	// LogPath sends logs to a file instead of stdout.
	LogPath  string
	LogLevel string
	// Debug turns on development checks such as unmemoized handle warnings.
	Debug bool
	// Timeout bounds each remote call and each fire-and-forget write. Zero
	// means no bound.
	Timeout time.Duration
}

func NewConfig() *Config {
	return &Config{
		StoreURL: DefaultStoreURL,
		LogLevel: DefaultLogLevel,
		Timeout:  constants.DefaultWSTimeout,
	}
}

// ConfigFromEnv starts from NewConfig and overrides what the FINTRACK_*
// variables set.
func ConfigFromEnv() (*Config, error) {
	c := NewConfig()
	c.StoreURL = GetEnvOrDefault(EnvStoreURL, c.StoreURL)
	c.Token = GetEnvOrDefault(EnvToken, c.Token)
	c.LogPath = GetEnvOrDefault(EnvLogPath, c.LogPath)
	c.LogLevel = GetEnvOrDefault(EnvLogLevel, c.LogLevel)

	if v := GetEnvOrDefault(EnvDebug, ""); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		c.Debug = debug
	}
	if v := GetEnvOrDefault(EnvTimeout, ""); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		c.Timeout = timeout
	}
	return c, c.Validate()
}

func (c *Config) Validate() error {
	if c.StoreURL == "" {
		return constants.ErrNoStoreURL
	}
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store url: %w", err)
	}
	switch u.Scheme {
	case constants.MemoryScheme, constants.PostgresScheme, constants.PostgresAltScheme:
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
		if u.Host == "" {
			return fmt.Errorf("invalid store url %q: missing host", c.StoreURL)
		}
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnsupportedScheme, u.Scheme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	return nil
}
