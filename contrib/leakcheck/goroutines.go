package leakcheck

import (
	"io"
	"log"
	"runtime"
	"runtime/pprof"
	"time"
)

// CleanupPeriod is how long WaitForGoroutines gives goroutines that are
// already shutting down to exit.
var CleanupPeriod = 1 * time.Second

// WaitForGoroutines polls until at most expected goroutines are running or
// CleanupPeriod passes, and returns the last count it saw.
func WaitForGoroutines(expected int) int {
	var count int
	start := time.Now()
	for time.Since(start) <= CleanupPeriod {
		runtime.Gosched()

		count = runtime.NumGoroutine()
		if count <= expected {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}
	return count
}

// ReportLeakedGoroutines compares the goroutine count against baseline, the
// count taken before the code under test ran. On a leak it dumps all
// goroutine stacks to out.
func ReportLeakedGoroutines(baseline int, out io.Writer) bool {
	final := WaitForGoroutines(baseline)
	if final > baseline {
		log.Printf("Detected a goroutine leak (%d before != %d after)", baseline, final)
		_ = pprof.Lookup("goroutine").WriteTo(out, 1)
		return false
	}

	log.Printf("No goroutines appear to have leaked (%d before, %d after)", baseline, final)
	return true
}
