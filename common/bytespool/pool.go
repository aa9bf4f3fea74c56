// Package bytespool hands out byte slices from a small set of size classes so
// that buffers which grow and shrink often reuse storage instead of reallocating.
package bytespool

import "sync"

// There are numClasses classes. Starting from MinClassSize, each class is
// classMulti times the previous one. Requests above the largest class are
// served straight from make and never pooled.
const (
	numClasses   = 8
	classMulti   = 4
	MinClassSize = 64
)

var (
	pools     [numClasses]sync.Pool
	classSize [numClasses]int
)

func init() {
	size := MinClassSize
	for i := range numClasses {
		s := size
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, s)
				return &b
			},
		}
		classSize[i] = s
		size *= classMulti
	}
}

// MaxClassSize is the capacity of the largest pooled slice.
func MaxClassSize() int {
	return classSize[numClasses-1]
}

// class returns the index of the smallest class holding size bytes, or -1.
func class(size int) int {
	for i, cs := range classSize {
		if size <= cs {
			return i
		}
	}
	return -1
}

// Alloc returns a zeroed slice of length size. Its capacity is the size of
// the class that served it, so callers can grow in place up to cap.
func Alloc(size int) []byte {
	if size < 0 {
		size = 0
	}
	idx := class(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := (*bp)[:size]
	clear(b)
	return b
}

// Free puts b back into its class. Slices whose capacity does not match a
// class exactly (including the ones Alloc made directly) are left to the GC.
func Free(b []byte) {
	c := cap(b)
	idx := class(c)
	if idx < 0 || classSize[idx] != c {
		return
	}
	b = b[:c]
	pools[idx].Put(&b)
}
