// Package bridge exposes the reactor and the byte buffers to a wazero guest
// as versioned host modules.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenListTeam/wazero-uv/common/bytebuf"
	"github.com/OpenListTeam/wazero-uv/internal/resource"
	"github.com/OpenListTeam/wazero-uv/manager/uv"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
)

// Implementation 是所有宿主模块必须实现的接口。
type Implementation interface {
	// Name 返回模块的名称，例如 "uv"。
	Name() string
	// Versions 返回此实现导出的版本列表，例如 ["0.1.1"]。
	Versions() []string
	// Instantiate 将模块的函数导出到 wazero 运行时。
	Instantiate(context.Context, *Host, wazero.HostModuleBuilder) error
}

// ErrUnsupportedVersion is recorded for a module version no implementation
// serves.
var ErrUnsupportedVersion = errors.New("bridge: unsupported module version")

type rejection struct {
	module  string
	version string
	err     error
}

// Host holds the state shared by every host module: the loop the guest
// drives and the buffers it has allocated.
type Host struct {
	loop    *uv.Loop
	buffers *resource.Table[*bytebuf.Buffer]
	log     zerolog.Logger

	implementations []Implementation
	rejected        []rejection
}

// ModuleOption 是用于配置 Host 的选项函数。
type ModuleOption func(*Host)

// WithLoop makes the host drive l instead of a loop of its own.
func WithLoop(l *uv.Loop) ModuleOption {
	return func(h *Host) {
		h.loop = l
	}
}

// WithLogger sets the logger used by the host modules.
func WithLogger(log zerolog.Logger) ModuleOption {
	return func(h *Host) {
		h.log = log
	}
}

// NewHost 创建一个新的 Host 实例，并应用所有提供的模块选项。
func NewHost(opts ...ModuleOption) *Host {
	h := &Host{
		buffers: resource.NewTable[*bytebuf.Buffer](),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.loop == nil {
		h.loop = uv.NewLoop(uv.WithLogger(h.log))
	}
	return h
}

func (h *Host) AddImplementation(impl Implementation) {
	h.implementations = append(h.implementations, impl)
}

// Reject records a module version that a ModuleOption could not serve.
// Rejections are logged by Instantiate, once every option has been applied.
func (h *Host) Reject(module, version string, err error) {
	h.rejected = append(h.rejected, rejection{module: module, version: version, err: err})
}

// Instantiate 将所有已配置的模块实例化到 wazero 运行时。
// Each version is its own module, named "<name>@<version>".
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) error {
	for _, rej := range h.rejected {
		h.log.Warn().Err(rej.err).Str("module", rej.module).Str("version", rej.version).Msg("module version skipped")
	}
	for _, impl := range h.implementations {
		for _, version := range impl.Versions() {
			moduleName := impl.Name() + "@" + version
			builder := r.NewHostModuleBuilder(moduleName)
			if err := impl.Instantiate(ctx, h, builder); err != nil {
				return fmt.Errorf("bridge: %s: %w", moduleName, err)
			}
			if _, err := builder.Instantiate(ctx); err != nil {
				return fmt.Errorf("bridge: instantiate %s: %w", moduleName, err)
			}
			h.log.Debug().Str("module", moduleName).Msg("host module instantiated")
		}
	}
	return nil
}

func (h *Host) Loop() *uv.Loop {
	return h.loop
}

func (h *Host) Logger() zerolog.Logger {
	return h.log
}

// Buffers is the table of guest-visible buffers, keyed by buffer id.
func (h *Host) Buffers() *resource.Table[*bytebuf.Buffer] {
	return h.buffers
}

// AddBuffer registers b with the guest and returns its id.
func (h *Host) AddBuffer(b *bytebuf.Buffer) uint32 {
	h.buffers.Put(b.ID(), b)
	return b.ID()
}

// Buffer looks up a guest-visible buffer.
func (h *Host) Buffer(id uint32) (*bytebuf.Buffer, bool) {
	return h.buffers.Get(id)
}

// Close shuts the loop down and frees every buffer the guest still holds.
func (h *Host) Close() error {
	err := h.loop.Shutdown()
	h.buffers.Range(func(id uint32, b *bytebuf.Buffer) bool {
		h.buffers.Remove(id)
		b.Free()
		return true
	})
	return err
}
