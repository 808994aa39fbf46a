package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Heliodex/minilua/net"
	"github.com/Heliodex/minilua/vm/compile"
	"github.com/tailscale/hujson"
	"golang.org/x/crypto/blake2b"
)

// looked for in the working directory, in order
var configNames = []string{"minilua.jsonc", "minilua.json", "minilua.toml"}

type Config struct {
	Luac       string `json:"luac" toml:"luac"`
	Iterations int    `json:"iterations" toml:"iterations"`
	Verbosity  int    `json:"verbosity" toml:"verbosity"`
	DB         string `json:"db" toml:"db"`
	Listen     string `json:"listen" toml:"listen"`
	Debounce   string `json:"debounce" toml:"debounce"`
	// hex fingerprint printed by serve, empty to trust any server
	Pin string `json:"pin" toml:"pin"`
}

func defaultConfig() Config {
	return Config{
		Luac:       compile.DefaultLuac,
		Iterations: 1,
		DB:         "minilua.db",
		Listen:     net.DefaultAddr,
		Debounce:   "100ms",
	}
}

// DebounceDuration is how long watch waits for changes to settle.
func (c Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", c.Debounce, err)
	} else if d < 0 {
		return 0, fmt.Errorf("invalid debounce %q: negative", c.Debounce)
	}
	return d, nil
}

// Client is how remote talks to execution servers.
func (c Config) Client() (*net.Client, error) {
	if c.Pin == "" {
		return &net.Client{Insecure: true}, nil
	}

	pin, err := hex.DecodeString(c.Pin)
	if err != nil {
		return nil, fmt.Errorf("invalid pin %q: %w", c.Pin, err)
	} else if len(pin) != blake2b.Size256 {
		return nil, fmt.Errorf("invalid pin %q: want %d bytes, got %d", c.Pin, blake2b.Size256, len(pin))
	}
	return &net.Client{Pin: pin}, nil
}

func (c Config) validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	_, err := c.Client()
	return err
}

func parseConfig(path string, data []byte) (c Config, err error) {
	c = defaultConfig()

	switch ext := filepath.Ext(path); ext {
	case ".jsonc", ".json":
		if data, err = hujson.Standardize(data); err != nil {
			return c, fmt.Errorf("parse error in %s: %w", path, err)
		}
		err = json.Unmarshal(data, &c)
	case ".toml":
		err = toml.Unmarshal(data, &c)
	default:
		return c, fmt.Errorf("unknown config format %q", ext)
	}

	if err != nil {
		return c, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, c.validate()
}

// LoadConfig reads the config at path, or the first config file found in dir if path is empty.
// No config file at all just means defaults.
func LoadConfig(path, dir string) (Config, error) {
	if path == "" {
		for _, name := range configNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return defaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config file %s not found", path)
	} else if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parseConfig(path, data)
}
