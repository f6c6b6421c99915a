package replyx

import "sync"

var (
	defaultDispatcherOnce sync.Once
	defaultDispatcher     *MainDispatcher
)

// DefaultDispatcher returns the process-wide dispatcher used by repliers
// created without one. It is started on first use and lives for the rest of
// the process.
func DefaultDispatcher() Dispatcher {
	defaultDispatcherOnce.Do(func() {
		defaultDispatcher = NewMainDispatcher(nil)
		defaultDispatcher.Start()
	})
	return defaultDispatcher
}
