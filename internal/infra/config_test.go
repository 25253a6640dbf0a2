package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: "TapeFeed"
api:
  stream:
    ws_url: "wss://stream.example.vn/market"
  snapshot:
    rest_url: "https://api.example.vn/v1"
    poll_interval_sec: 60
watch:
  symbols: ["SSI", "VCB"]
board:
  highlight_ms: 300
logging:
  level: "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.API.Stream.WSURL != "wss://stream.example.vn/market" {
			t.Errorf("unexpected ws url: %s", cfg.API.Stream.WSURL)
		}
		if cfg.Watch.Primary != "SSI" {
			t.Errorf("primary must default to the first symbol, got %s", cfg.Watch.Primary)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("Invalid WS URL", func(t *testing.T) {
		bad := `
api:
  stream:
    ws_url: "http://not-a-socket"
  snapshot:
    rest_url: "https://api.example.vn/v1"
    poll_interval_sec: 60
watch:
  symbols: ["SSI"]
`
		if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
			t.Error("expected validation failure for non-ws URL")
		}
	})

	t.Run("No Symbols", func(t *testing.T) {
		bad := `
api:
  stream:
    ws_url: "wss://stream.example.vn/market"
  snapshot:
    rest_url: "https://api.example.vn/v1"
    poll_interval_sec: 60
watch:
  symbols: []
`
		if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
			t.Error("expected validation failure for empty watchlist")
		}
	})

	t.Run("Env Override", func(t *testing.T) {
		t.Setenv("TAPEFEED_STREAM_TOKEN", "secret-token")

		cfg, err := LoadConfig(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.API.Stream.AuthToken != "secret-token" {
			t.Errorf("env var must override the token, got %q", cfg.API.Stream.AuthToken)
		}
	})
}
