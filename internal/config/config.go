// Package config resolves client settings from defaults, an optional rc
// file and the environment. Command line flags are applied on top by the
// caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultServer is the public WebPageTest instance
	DefaultServer = "https://www.webpagetest.org"
	// DefaultListen is the local proxy listen address
	DefaultListen = ":7791"
	// DefaultWaitPort is the first port tried for pingback listeners
	DefaultWaitPort = 8000
	// DefaultPollInterval is the status polling interval of synchronous tests
	DefaultPollInterval = 5 * time.Second
	// DefaultTimeout bounds a single HTTP call
	DefaultTimeout = 30 * time.Second

	// FileName is the rc file looked up in the working and home directories
	FileName = ".webpagetest.yaml"

	// FilePermissions is the permission mode of files written by the CLI
	FilePermissions = 0644
)

// Environment variables overriding the rc file
const (
	EnvServer = "WPT_SERVER"
	EnvAPIKey = "WPT_API_KEY"
	EnvDebug  = "WPT_DEBUG"
	EnvListen = "WPT_LISTEN"
)

// Config holds the settings shared by every command
type Config struct {
	Server       string        `yaml:"server"`
	APIKey       string        `yaml:"key"`
	Debug        bool          `yaml:"debug"`
	Listen       string        `yaml:"listen"`
	WaitPort     int           `yaml:"waitPort"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
	Reporter     string        `yaml:"reporter"`

	// Path of the rc file applied, empty when none was found
	Path string `yaml:"-"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Server:       DefaultServer,
		Listen:       DefaultListen,
		WaitPort:     DefaultWaitPort,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// Load returns the defaults overridden by the first rc file found
// (./.webpagetest.yaml, then ~/.webpagetest.yaml) and by the environment
func Load() (*Config, error) {
	paths := []string{FileName}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, FileName))
	}
	return LoadFrom(paths, os.LookupEnv)
}

// LoadFrom applies the first existing file of paths, then the variables
// returned by lookupEnv
func LoadFrom(paths []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	config := Default()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		config.Path = path
		break
	}

	if lookupEnv != nil {
		if err := config.applyEnv(lookupEnv); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv(EnvServer); ok && v != "" {
		c.Server = v
	}
	if v, ok := lookupEnv(EnvAPIKey); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := lookupEnv(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookupEnv(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvDebug, v, err)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	if c.WaitPort < 0 || c.WaitPort > 65535 {
		return fmt.Errorf("waitPort %d out of range", c.WaitPort)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("pollInterval must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
