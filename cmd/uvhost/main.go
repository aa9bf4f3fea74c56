// Command uvhost runs a WebAssembly guest against the uv and bytes host
// modules. The guest's entry export is called once with the loop id and
// is expected to drive the loop through uv.poll until it drains.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenListTeam/wazero-uv/bridge"
	bridge_bytes "github.com/OpenListTeam/wazero-uv/bridge/bytes"
	bridge_uv "github.com/OpenListTeam/wazero-uv/bridge/uv"
	"github.com/OpenListTeam/wazero-uv/internal/config"
	"github.com/OpenListTeam/wazero-uv/internal/logging"
	"github.com/OpenListTeam/wazero-uv/manager/fault"
	"github.com/OpenListTeam/wazero-uv/manager/uv"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// tracebackExport is the guest function asked to print its own stack after
// a fatal signal.
const tracebackExport = "print-traceback"

func main() {
	configPath := flag.String("config", "uvhost.toml", "path to the TOML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "uvhost:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New("uvhost", cfg.Log)
	if err != nil {
		return err
	}

	wasm, err := os.ReadFile(cfg.Guest.Path)
	if err != nil {
		return fmt.Errorf("read guest: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer r.Close(context.Background())
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	loop := uv.NewLoop(
		uv.WithLogger(logger),
		uv.WithResolverCache(cfg.Resolver.CacheSize, cfg.Resolver.TTL),
	)
	opts := []bridge.ModuleOption{bridge.WithLoop(loop), bridge.WithLogger(logger)}
	for _, v := range cfg.Modules.UV {
		opts = append(opts, bridge_uv.Module(v))
	}
	for _, v := range cfg.Modules.Bytes {
		opts = append(opts, bridge_bytes.Module(v))
	}
	host := bridge.NewHost(opts...)
	defer func() {
		if err := host.Close(); err != nil && !errors.Is(err, uv.ErrLoopClosed) {
			logger.Warn().Err(err).Msg("host close")
		}
	}()
	if err := host.Instantiate(ctx, r); err != nil {
		return err
	}

	mod, err := r.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().
		WithName(cfg.Guest.Name).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithStartFunctions("_initialize"))
	if err != nil {
		return fmt.Errorf("instantiate guest: %w", err)
	}

	hook, err := installFault(ctx, cfg.Fault, logger, loop, mod)
	if err != nil {
		return err
	}
	defer hook.Stop()

	entry := mod.ExportedFunction(cfg.Guest.Entry)
	if entry == nil {
		return fmt.Errorf("guest %s does not export %q", cfg.Guest.Name, cfg.Guest.Entry)
	}
	logger.Info().Str("guest", cfg.Guest.Name).Str("entry", cfg.Guest.Entry).Uint32("loop", uint32(loop.ID())).Msg("guest started")
	if _, err := entry.Call(ctx, uint64(loop.ID())); err != nil {
		return fmt.Errorf("guest %s: %w", cfg.Guest.Entry, err)
	}
	logger.Info().Int("handles", loop.HandleCount()).Msg("guest returned")
	return nil
}

// installFault opens the crash log up front and installs the signal hook.
// The guest traceback is requested on the loop goroutine, never from the
// signal goroutine.
func installFault(ctx context.Context, cfg config.Fault, logger zerolog.Logger, loop *uv.Loop, mod api.Module) (*fault.Hook, error) {
	out := io.Writer(os.Stderr)
	var opts []fault.Option
	opts = append(opts, fault.WithLogger(logger))
	if cfg.CrashLog != "" {
		f, err := os.OpenFile(cfg.CrashLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open crash log: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		opts = append(opts, fault.WithCrashOutput(f))
	}

	printTraceback := mod.ExportedFunction(tracebackExport)
	onFault := func() {
		if printTraceback == nil {
			return
		}
		loop.Post(func() {
			if _, err := printTraceback.Call(ctx); err != nil {
				logger.Error().Err(err).Msg("guest traceback failed")
			}
		})
	}
	return fault.Install(out, onFault, opts...)
}
