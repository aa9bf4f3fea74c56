package v0_1

import (
	"context"

	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/internal/abi"

	"github.com/Masterminds/semver/v3"
	"github.com/tetratelabs/wazero"
)

var supported = func() *semver.Constraints {
	c, err := semver.NewConstraint("~0.1")
	if err != nil {
		panic(err)
	}
	return c
}()

// Supports reports whether this package implements bytes version v.
func Supports(v *semver.Version) bool {
	return supported.Check(v)
}

type bytesModule struct {
	version *semver.Version
}

func NewBytes(v *semver.Version) bridge.Implementation {
	return &bytesModule{version: v}
}

func (i *bytesModule) Name() string       { return "bytes" }
func (i *bytesModule) Versions() []string { return []string{i.version.String()} }

func (i *bytesModule) Instantiate(_ context.Context, h *bridge.Host, b wazero.HostModuleBuilder) error {
	handler := newBytesImpl(h)
	abi.NewExporter(b).
		Export("new", handler.New).
		Export("free", handler.Free).
		Export("append", handler.Append).
		Export("id", handler.ID).
		Export("len", handler.Len).
		Export("read-uint-be", handler.ReadUintBE).
		Export("write-uint-be", handler.WriteUintBE).
		Export("append-uint-be", handler.AppendUintBE).
		Export("hexdump16", handler.Hexdump16).
		Export("load", handler.Load).
		Export("store", handler.Store)
	return nil
}
