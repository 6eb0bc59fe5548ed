// Package config loads the warden configuration file. Runtime settings
// (paths, endpoints) live here; tunables under the policy sections are fed
// into the policy store's environment tier, where process env vars and
// persisted overrides can still supersede them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/policy"
)

// Config is the on-disk configuration.
type Config struct {
	// DataDir holds the state database and the healer lock file.
	DataDir string `yaml:"dataDir"`
	// Listen is the address for the metrics/health endpoint.
	Listen string `yaml:"listen"`

	Kubectl struct {
		Binary     string `yaml:"binary"`
		Kubeconfig string `yaml:"kubeconfig"`
	} `yaml:"kubectl"`

	Alertmanager struct {
		URL string `yaml:"url"`
	} `yaml:"alertmanager"`

	Forecast struct {
		URL string `yaml:"url"`
	} `yaml:"forecast"`

	// Policy sections: flat key/value maps under each prefix, e.g.
	// healer: {cooldown_seconds: "300"}.
	Healer   map[string]string `yaml:"healer"`
	Diagnose map[string]string `yaml:"diagnose"`
	AutoOps  map[string]string `yaml:"autoops"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		DataDir: "/var/lib/warden",
		Listen:  ":9464",
	}
	cfg.Kubectl.Binary = "kubectl"
	return cfg
}

// Load reads a config file. An empty path returns the defaults; a missing
// file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.Kubectl.Binary == "" {
		cfg.Kubectl.Binary = "kubectl"
	}
	return cfg, nil
}

// PolicyValues flattens the policy sections into the dotted keys the policy
// store resolves. Unknown keys are dropped with a warning rather than
// silently shadowing a typo.
func (c *Config) PolicyValues() map[string]string {
	out := make(map[string]string)
	sections := map[string]map[string]string{
		"healer":   c.Healer,
		"diagnose": c.Diagnose,
		"autoops":  c.AutoOps,
	}
	logger := log.WithComponent("config")
	for prefix, section := range sections {
		for k, v := range section {
			key := prefix + "." + k
			if !policy.Known(key) {
				logger.Warn().Str("key", key).Msg("unknown policy key in config, ignoring")
				continue
			}
			out[key] = v
		}
	}
	return out
}

// DatabaseDir returns the directory for the bbolt store, creating it if
// needed.
func (c *Config) DatabaseDir() (string, error) {
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Clean(c.DataDir), nil
}
