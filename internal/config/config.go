// Package config loads the uvhost configuration file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
)

// Config is the resolved host configuration.
type Config struct {
	Guest    Guest
	Modules  Modules
	Resolver Resolver
	Log      Log
	Fault    Fault
}

// Guest names the WebAssembly module to run and how to start it.
type Guest struct {
	Path  string
	Entry string
	Name  string
}

// Modules lists the host module versions to instantiate.
type Modules struct {
	UV    []string
	Bytes []string
}

type Resolver struct {
	CacheSize int
	TTL       time.Duration
}

type Log struct {
	Level   string
	Console bool
}

// Fault configures the fatal signal hook. An empty CrashLog writes the
// traceback to stderr only.
type Fault struct {
	CrashLog string
}

type fileConfig struct {
	Guest struct {
		Path  string `toml:"path"`
		Entry string `toml:"entry"`
		Name  string `toml:"name"`
	} `toml:"guest"`
	Modules struct {
		UV    []string `toml:"uv"`
		Bytes []string `toml:"bytes"`
	} `toml:"modules"`
	Resolver struct {
		CacheSize int    `toml:"cache_size"`
		TTL       string `toml:"ttl"`
	} `toml:"resolver"`
	Log struct {
		Level   string `toml:"level"`
		Console bool   `toml:"console"`
	} `toml:"log"`
	Fault struct {
		CrashLog string `toml:"crash_log"`
	} `toml:"fault"`
}

// Default is the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		Guest: Guest{Entry: "main", Name: "guest"},
		Modules: Modules{
			UV:    []string{"0.1.1"},
			Bytes: []string{"0.1.1"},
		},
		Resolver: Resolver{CacheSize: 256, TTL: 30 * time.Second},
		Log:      Log{Level: "info", Console: true},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("guest", "path") {
		cfg.Guest.Path = strings.TrimSpace(raw.Guest.Path)
	}
	if meta.IsDefined("guest", "entry") {
		cfg.Guest.Entry = strings.TrimSpace(raw.Guest.Entry)
	}
	if meta.IsDefined("guest", "name") {
		cfg.Guest.Name = strings.TrimSpace(raw.Guest.Name)
	}
	if meta.IsDefined("modules", "uv") {
		cfg.Modules.UV = raw.Modules.UV
	}
	if meta.IsDefined("modules", "bytes") {
		cfg.Modules.Bytes = raw.Modules.Bytes
	}
	if meta.IsDefined("resolver", "cache_size") {
		cfg.Resolver.CacheSize = raw.Resolver.CacheSize
	}
	if meta.IsDefined("resolver", "ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Resolver.TTL))
		if err != nil {
			return Config{}, fmt.Errorf("parse resolver.ttl: %w", err)
		}
		cfg.Resolver.TTL = d
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "console") {
		cfg.Log.Console = raw.Log.Console
	}
	if meta.IsDefined("fault", "crash_log") {
		cfg.Fault.CrashLog = strings.TrimSpace(raw.Fault.CrashLog)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Guest.Path == "" {
		errs = append(errs, errors.New("guest.path is required"))
	}
	if c.Guest.Entry == "" {
		errs = append(errs, errors.New("guest.entry must not be empty"))
	}
	if len(c.Modules.UV) == 0 {
		errs = append(errs, errors.New("modules.uv lists no version"))
	}
	for _, v := range append(append([]string(nil), c.Modules.UV...), c.Modules.Bytes...) {
		if _, err := semver.NewVersion(v); err != nil {
			errs = append(errs, fmt.Errorf("module version %q: %w", v, err))
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Resolver.CacheSize < 0 {
		errs = append(errs, errors.New("resolver.cache_size must not be negative"))
	}
	if c.Resolver.CacheSize > 0 && c.Resolver.TTL <= 0 {
		errs = append(errs, errors.New("resolver.ttl must be positive when the cache is on"))
	}
	return errors.Join(errs...)
}
