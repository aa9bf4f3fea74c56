package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uvhost.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[guest]
path = " echo.wasm "
`))
	require.NoError(t, err)

	want := Default()
	want.Guest.Path = "echo.wasm"
	assert.Equal(t, want, cfg)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[guest]
path = "/srv/echo.wasm"
entry = "run"
name = "echo"

[modules]
uv = ["0.1.0", "0.1.1"]
bytes = ["0.1.0"]

[resolver]
cache_size = 0
ttl = "5m"

[log]
level = "debug"
console = false

[fault]
crash_log = "/var/log/uvhost-crash.log"
`))
	require.NoError(t, err)
	assert.Equal(t, Guest{Path: "/srv/echo.wasm", Entry: "run", Name: "echo"}, cfg.Guest)
	assert.Equal(t, []string{"0.1.0", "0.1.1"}, cfg.Modules.UV)
	assert.Equal(t, []string{"0.1.0"}, cfg.Modules.Bytes)
	assert.Equal(t, Resolver{CacheSize: 0, TTL: 5 * time.Minute}, cfg.Resolver)
	assert.Equal(t, Log{Level: "debug", Console: false}, cfg.Log)
	assert.Equal(t, "/var/log/uvhost-crash.log", cfg.Fault.CrashLog)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing path", `[log]
level = "info"`, "guest.path is required"},
		{"bad ttl", `[guest]
path = "a.wasm"
[resolver]
ttl = "soon"`, "parse resolver.ttl"},
		{"bad version", `[guest]
path = "a.wasm"
[modules]
uv = ["latest"]`, `module version "latest"`},
		{"bad level", `[guest]
path = "a.wasm"
[log]
level = "loud"`, "log.level"},
		{"unknown key", `[guest]
path = "a.wasm"
paht = "b.wasm"`, `unknown key "guest.paht"`},
		{"syntax", `[guest`, "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Modules.UV = nil
	cfg.Resolver.CacheSize = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guest.path is required")
	assert.Contains(t, err.Error(), "modules.uv lists no version")
	assert.Contains(t, err.Error(), "resolver.cache_size")
}
