//go:build unix

package fault

import (
	"os"

	"golang.org/x/sys/unix"
)

var fatalSignals = []os.Signal{unix.SIGILL, unix.SIGBUS, unix.SIGSEGV, unix.SIGABRT}
