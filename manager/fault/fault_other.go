//go:build !unix

package fault

import "os"

// No fatal signals can be intercepted through os/signal here.
var fatalSignals []os.Signal
