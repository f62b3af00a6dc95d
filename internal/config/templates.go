package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Janus server configuration

[[accounts]]
alias = "acct-socket-1"
broker = "socket"
host = "127.0.0.1"
port = 7497
allow_short = false
locate_required = true

[accounts.credentials]
client_id = ""

[[accounts]]
alias = "acct-http-1"
broker = "http"
host = "api.broker-a.example.com"
port = 443
allow_short = false
locate_required = false

[accounts.credentials]
api_key = ""
api_secret = ""

[accounts.trade_events]
enable = true
host = "events.broker-a.example.com:443"
region_id = "us-east"

[global.market_data]
default_symbols = ["AAPL", "MSFT"]
use_rth = true

[global.reconnect]
interval_seconds = 5

[global]
refresh_debounce_ms = 250
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "janus.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
