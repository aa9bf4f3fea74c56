package fault

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards the traceback buffer, which is written from the watch
// goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// install returns a hook that records instead of ignoring signals.
func install(t *testing.T, out *syncBuffer, onFault func()) (*Hook, chan []os.Signal) {
	t.Helper()
	h, err := Install(out, onFault)
	require.NoError(t, err)
	t.Cleanup(h.Stop)

	ignored := make(chan []os.Signal, 4)
	h.ignore = func(sigs ...os.Signal) { ignored <- sigs }
	return h, ignored
}

func TestFaultRunsRecoverOnce(t *testing.T) {
	var out syncBuffer
	calls := make(chan struct{}, 4)
	h, ignored := install(t, &out, func() { calls <- struct{}{} })
	assert.False(t, h.Fired())

	h.sigs <- os.Interrupt
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("recover was not called")
	}
	assert.True(t, h.Fired())
	assert.Equal(t, Signals(), <-ignored)

	dump := out.String()
	assert.Contains(t, dump, "native traceback: interrupt\n")
	assert.Contains(t, dump, "goroutine ")

	h.sigs <- os.Interrupt
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, calls, "recover runs at most once")
	assert.Empty(t, ignored)
}

func TestFaultNilRecover(t *testing.T) {
	var out syncBuffer
	h, ignored := install(t, &out, nil)

	h.sigs <- os.Interrupt
	<-ignored
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("goroutine "))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	h, err := Install(&syncBuffer{}, nil)
	require.NoError(t, err)
	h.Stop()
	h.Stop()
	assert.False(t, h.Fired())
}

func TestCrashOutput(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "crash-*.log")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	h, err := Install(&syncBuffer{}, nil, WithCrashOutput(f))
	require.NoError(t, err)
	h.Stop()
}

func TestStacksGrows(t *testing.T) {
	s := stacks()
	assert.Contains(t, string(s), "TestStacksGrows")
}
