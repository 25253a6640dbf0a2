package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the full application configuration. Sensitive values are
// overridden from environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Stream struct {
			WSURL     string `yaml:"ws_url"`
			AuthToken string `yaml:"auth_token"`
		} `yaml:"stream"`
		Snapshot struct {
			RestURL         string `yaml:"rest_url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"snapshot"`
		Logo struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"logo"`
	} `yaml:"api"`

	Watch struct {
		Symbols []string `yaml:"symbols"`
		Primary string   `yaml:"primary"`
	} `yaml:"watch"`

	Board struct {
		HighlightMS     int `yaml:"highlight_ms"`
		HistorySize     int `yaml:"history_size"`
		InboxSize       int `yaml:"inbox_size"`
		PrintsRetention int `yaml:"prints_retention"`
	} `yaml:"board"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.Stream.WSURL == "" || (!hasPrefix(c.API.Stream.WSURL, "ws://") && !hasPrefix(c.API.Stream.WSURL, "wss://")) {
		return fmt.Errorf("invalid stream WS URL: %s", c.API.Stream.WSURL)
	}
	if c.API.Snapshot.RestURL == "" || (!hasPrefix(c.API.Snapshot.RestURL, "http://") && !hasPrefix(c.API.Snapshot.RestURL, "https://")) {
		return fmt.Errorf("invalid snapshot REST URL: %s", c.API.Snapshot.RestURL)
	}
	if len(c.Watch.Symbols) == 0 {
		return fmt.Errorf("at least one watch symbol is required")
	}
	if c.Watch.Primary == "" {
		c.Watch.Primary = c.Watch.Symbols[0]
	}
	if c.API.Snapshot.PollIntervalSec <= 0 {
		return fmt.Errorf("snapshot poll interval must be positive")
	}
	if c.Board.HighlightMS < 0 {
		return fmt.Errorf("highlight duration must not be negative")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over the file values.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("TAPEFEED_STREAM_TOKEN"); token != "" {
		cfg.API.Stream.AuthToken = token
	}
	if url := os.Getenv("TAPEFEED_STREAM_URL"); url != "" {
		cfg.API.Stream.WSURL = url
	}
	if url := os.Getenv("TAPEFEED_SNAPSHOT_URL"); url != "" {
		cfg.API.Snapshot.RestURL = url
	}
}
