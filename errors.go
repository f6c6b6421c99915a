package replyx

import "errors"

var (
	// ErrDispatcherClosed is logged when work is scheduled on a dispatcher
	// that has already been closed. Schedule itself never returns it.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)
