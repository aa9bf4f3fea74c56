package bridge_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/OpenListTeam/wazero-uv/bridge"
	bridge_bytes "github.com/OpenListTeam/wazero-uv/bridge/bytes"
	bridge_uv "github.com/OpenListTeam/wazero-uv/bridge/uv"
	"github.com/OpenListTeam/wazero-uv/common/bytebuf"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func newRuntime(t *testing.T) (context.Context, wazero.Runtime) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })
	return ctx, r
}

func exportNames(t *testing.T, r wazero.Runtime, module string) []string {
	t.Helper()
	m := r.Module(module)
	require.NotNil(t, m, "module %s", module)
	var names []string
	for name := range m.ExportedFunctionDefinitions() {
		names = append(names, name)
	}
	return names
}

func TestInstantiateVersions(t *testing.T) {
	ctx, r := newRuntime(t)
	h := bridge.NewHost(
		bridge_uv.Module("0.1.0"),
		bridge_uv.Module("0.1.1"),
		bridge_uv.Module("0.2.0"),
		bridge_uv.Module("not-a-version"),
		bridge_bytes.Module("0.1.1"),
	)
	t.Cleanup(func() { h.Close() })
	require.NoError(t, h.Instantiate(ctx, r))

	v010 := exportNames(t, r, "uv@0.1.0")
	assert.Contains(t, v010, "poll")
	assert.Contains(t, v010, "walk-gc")
	assert.NotContains(t, v010, "start-timer")

	v011 := exportNames(t, r, "uv@0.1.1")
	assert.Contains(t, v011, "start-timer")
	assert.Contains(t, v011, "local-port")

	assert.Nil(t, r.Module("uv@0.2.0"))
	assert.ElementsMatch(t, []string{
		"new", "free", "append", "id", "len", "read-uint-be", "write-uint-be",
		"append-uint-be", "hexdump16", "load", "store",
	}, exportNames(t, r, "bytes@0.1.1"))
}

func TestCallThroughRuntime(t *testing.T) {
	ctx, r := newRuntime(t)
	h := bridge.NewHost(bridge_uv.Module("0.1.1"), bridge_bytes.Module("0.1.0"))
	t.Cleanup(func() { h.Close() })
	require.NoError(t, h.Instantiate(ctx, r))

	uvm := r.Module("uv@0.1.1")
	call := func(name string, params ...uint64) uint64 {
		t.Helper()
		res, err := uvm.ExportedFunction(name).Call(ctx, params...)
		require.NoError(t, err, name)
		if len(res) == 0 {
			return 0
		}
		return res[0]
	}

	res := call("loop")
	assert.Equal(t, uint64(h.Loop().ID()), res)

	tcp := call("tcp-new")
	require.NotZero(t, tcp)
	timer := call("set-timer", 60_000, 0)
	require.NotZero(t, timer)
	assert.Equal(t, uint64(2), call("handle-count"))

	assert.Zero(t, call("stop-timer", timer))
	assert.Equal(t, api.EncodeI32(-22), call("stop-timer", tcp), "wrong kind")
	call("handle-dump")

	call("walk-clear-mark")
	assert.Zero(t, call("mark-keep", timer))
	assert.Equal(t, uint64(1), call("walk-gc"))
	assert.Zero(t, call("close", timer))
	assert.Equal(t, api.EncodeI32(-9), call("close", timer), "double close")

	bm := r.Module("bytes@0.1.0")
	res2, err := bm.ExportedFunction("new").Call(ctx, 4)
	require.NoError(t, err)
	buf, ok := h.Buffer(uint32(res2[0]))
	require.True(t, ok)
	assert.Equal(t, 4, buf.Len())

	_, err = bm.ExportedFunction("write-uint-be").Call(ctx, res2[0], 0, 4, 0xCAFEBABE)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), buf.ReadUint(0, 4))

	_, err = bm.ExportedFunction("free").Call(ctx, res2[0])
	require.NoError(t, err)
	_, ok = h.Buffer(uint32(res2[0]))
	assert.False(t, ok)
}

func TestHostClose(t *testing.T) {
	h := bridge.NewHost()
	id := h.AddBuffer(bytebuf.New(8))
	_, err := h.Loop().TCPNew()
	require.NoError(t, err)

	require.NoError(t, h.Close())
	_, ok := h.Buffer(id)
	assert.False(t, ok)
	assert.Zero(t, h.Loop().HandleCount())
}

func TestRejectedVersionsUseFinalLogger(t *testing.T) {
	ctx, r := newRuntime(t)
	var out bytes.Buffer
	h := bridge.NewHost(
		bridge_uv.Module("0.3.0"),
		bridge_bytes.Module("one"),
		bridge.WithLogger(zerolog.New(&out)),
	)
	t.Cleanup(func() { h.Close() })
	require.NoError(t, h.Instantiate(ctx, r))

	logged := out.String()
	assert.Contains(t, logged, `"module":"uv","version":"0.3.0"`)
	assert.Contains(t, logged, bridge.ErrUnsupportedVersion.Error())
	assert.Contains(t, logged, `"module":"bytes","version":"one"`)
	assert.Nil(t, r.Module("uv@0.3.0"))
}
