package editor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration the domedit command loads. Engine
// wiring (document, surface, host) comes from the driver; this covers
// everything tunable from outside.
type FileConfig struct {
	Browser struct {
		// Remote is a DevTools WebSocket URL to attach to. Empty launches
		// a local browser.
		Remote string `yaml:"remote"`
		// Headless controls local launches.
		Headless bool `yaml:"headless"`
		// URL is the page to open after launch.
		URL string `yaml:"url"`
	} `yaml:"browser"`

	History struct {
		// Max caps the undo stack. Default 100.
		Max int `yaml:"max"`
		// MergeWindowMS is the edit-merge window in milliseconds.
		// Default 800.
		MergeWindowMS int `yaml:"merge_window_ms"`
	} `yaml:"history"`

	Journal struct {
		// Path of the SQLite journal. Empty disables persistence.
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Apply struct {
		// WebhookURL receives packaged transactions. Empty disables the
		// drain loop.
		WebhookURL  string `yaml:"webhook_url"`
		TimeoutMS   int    `yaml:"timeout_ms"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"apply"`

	Ctl struct {
		// Addr the control surface listens on. Default ":8090".
		Addr string `yaml:"addr"`
		// BearerHash is a bcrypt hash of the expected bearer token. Empty
		// disables auth.
		BearerHash string `yaml:"bearer_hash"`
	} `yaml:"ctl"`
}

func (c *FileConfig) applyDefaults() {
	if c.History.Max == 0 {
		c.History.Max = 100
	}
	if c.History.MergeWindowMS == 0 {
		c.History.MergeWindowMS = 800
	}
	if c.Ctl.Addr == "" {
		c.Ctl.Addr = ":8090"
	}
	if c.Apply.TimeoutMS == 0 {
		c.Apply.TimeoutMS = 10_000
	}
	if c.Apply.MaxAttempts == 0 {
		c.Apply.MaxAttempts = 3
	}
}

// MergeWindow returns the configured merge window as a duration.
func (c *FileConfig) MergeWindow() time.Duration {
	return time.Duration(c.History.MergeWindowMS) * time.Millisecond
}

// LoadConfigFile reads and validates a YAML configuration file. A missing
// path returns defaults.
func LoadConfigFile(path string) (*FileConfig, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("editor: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("editor: parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}
