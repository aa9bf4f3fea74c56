package v0_1

import (
	"context"

	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/internal/abi"

	"github.com/Masterminds/semver/v3"
	"github.com/tetratelabs/wazero"
)

var (
	supported = mustConstraint(">= 0.1.0, < 0.2.0")
	// 0.1.1 adds start-timer and local-port.
	withRearm = mustConstraint(">= 0.1.1")
)

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}

// Supports reports whether this package implements uv version v.
func Supports(v *semver.Version) bool {
	return supported.Check(v)
}

// --- uv@0.1.x implementation ---

type uvModule struct {
	version *semver.Version
}

func NewUV(v *semver.Version) bridge.Implementation {
	return &uvModule{version: v}
}

func (i *uvModule) Name() string       { return "uv" }
func (i *uvModule) Versions() []string { return []string{i.version.String()} }

func (i *uvModule) Instantiate(_ context.Context, h *bridge.Host, b wazero.HostModuleBuilder) error {
	handler := newUVImpl(h)
	exporter := abi.NewExporter(b)
	exporter.
		Export("loop", handler.Loop).
		Export("poll", handler.Poll).
		Export("tcp-new", handler.TCPNew).
		Export("connect", handler.Connect).
		Export("listen6", handler.Listen6).
		Export("read", handler.Read).
		Export("write", handler.Write).
		Export("set-timer", handler.SetTimer).
		Export("stop-timer", handler.StopTimer).
		Export("close", handler.Close).
		Export("handle-count", handler.HandleCount).
		Export("handle-dump", handler.HandleDump).
		Export("walk-clear-mark", handler.WalkClearMark).
		Export("mark-keep", handler.MarkKeep).
		Export("walk-gc", handler.WalkGC)
	if withRearm.Check(i.version) {
		exporter.
			Export("start-timer", handler.StartTimer).
			Export("local-port", handler.LocalPort)
	}
	return nil
}
