package v1

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/appmodel/runtime"
)

const (
	ConfigType = "config.appmodel.ocm.software"
	Version    = "v1"
)

const ConfigFlag = "config"

var scheme = runtime.NewScheme()

func init() {
	scheme.MustRegisterWithAlias(&Config{}, runtime.NewType(ConfigType, Version))
}

// Config holds the defaults of the appmodel command line client. Flags given
// on the command line take precedence.
type Config struct {
	Type runtime.Type `json:"type"`
	// Mode is the default resolution mode.
	Mode string `json:"mode,omitempty"`
	// Concurrency bounds parallel repository lookups.
	Concurrency int    `json:"concurrency,omitempty"`
	Cache       *Cache `json:"cache,omitempty"`
	// Overrides are system overrides applied to every resolution, either
	// property names or group:artifact keys.
	Overrides map[string]string `json:"overrides,omitempty"`
}

func (c *Config) GetType() runtime.Type {
	return c.Type
}

// Cache configures the lookup cache in front of the repository.
type Cache struct {
	Size int `json:"size,omitempty"`
	// TTL is a duration such as 10m.
	TTL string `json:"ttl,omitempty"`
}

// TTLDuration parses TTL, zero if unset.
func (c *Cache) TTLDuration() (time.Duration, error) {
	if c == nil || c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// Load decodes a configuration document.
func Load(r io.Reader) (*Config, error) {
	obj, err := scheme.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}
	cfg, ok := obj.(*Config)
	if !ok {
		return nil, fmt.Errorf("unexpected configuration %T", obj)
	}
	if _, err := cfg.Cache.TTLDuration(); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("configuration %q: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath is $HOME/.config/appmodel/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "appmodel", "config.yaml"), nil
}

func RegisterConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(ConfigFlag, "", "path to the configuration file (default $HOME/.config/appmodel/config.yaml if present)")
}

// GetConfigForCommand loads the file given with --config, or the default
// configuration file if it exists. Without either an empty configuration is returned.
func GetConfigForCommand(cmd *cobra.Command) (*Config, error) {
	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		return nil, fmt.Errorf("getting config flag failed: %w", err)
	}
	if path != "" {
		return LoadFile(path)
	}
	path, err = DefaultPath()
	if err != nil {
		return &Config{Type: runtime.NewType(ConfigType, Version)}, nil //nolint:nilerr // no home, no default config
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{Type: runtime.NewType(ConfigType, Version)}, nil
	}
	return cfg, err
}
