package bytespool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocUsesClasses(t *testing.T) {
	b := Alloc(10)
	assert.Len(t, b, 10)
	assert.Equal(t, MinClassSize, cap(b))

	b = Alloc(MinClassSize + 1)
	assert.Equal(t, MinClassSize*classMulti, cap(b))

	big := Alloc(MaxClassSize() + 1)
	assert.Len(t, big, MaxClassSize()+1)
	Free(big)
}

func TestAllocIsZeroed(t *testing.T) {
	b := Alloc(32)
	for i := range b {
		b[i] = 0xFF
	}
	Free(b)

	for range 4 {
		assert.Equal(t, make([]byte, 48), Alloc(48))
	}
}

func TestFreeIgnoresForeignSlices(t *testing.T) {
	Free(nil)
	Free(make([]byte, 3, 100))
	assert.Equal(t, -1, class(MaxClassSize()+1))
	assert.Equal(t, 0, class(0))
}
