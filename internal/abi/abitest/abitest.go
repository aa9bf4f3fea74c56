// Package abitest provides a guest module with nothing but linear memory,
// for exercising host functions that read and write guest memory.
package abitest

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// memoryOnly is a module with one exported page of memory and no code.
var memoryOnly = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1 page
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

// MemoryModule instantiates an anonymous memory-only guest in r.
func MemoryModule(t testing.TB, ctx context.Context, r wazero.Runtime) api.Module {
	t.Helper()
	m, err := r.InstantiateWithConfig(ctx, memoryOnly, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		t.Fatalf("instantiate memory module: %v", err)
	}
	return m
}
