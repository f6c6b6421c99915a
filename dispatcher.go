package replyx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dispatcher runs units of work on a goroutine it owns.
type Dispatcher interface {
	// Schedule queues fn and returns without waiting for it to run. fn is
	// never run synchronously, even when Schedule is called from the
	// dispatcher's own goroutine.
	Schedule(fn func())
}

type MainDispatcherOptions struct {
	Logger *zap.Logger

	// LockOSThread pins the loop goroutine to its OS thread for as long as
	// the loop runs. Combined with Run from main.main (after locking in an
	// init func) this makes the process main thread the designated thread.
	LockOSThread bool
}

// MainDispatcher runs scheduled work one unit at a time, in the order it was
// scheduled, on a single goroutine.
type MainDispatcher struct {
	logger       *zap.Logger
	lockOSThread bool

	queue     *workQueue
	started   atomic.Bool
	closeOnce sync.Once
	doneCh    chan struct{}
}

var _ Dispatcher = (*MainDispatcher)(nil)

// NewMainDispatcher creates a dispatcher. Nothing runs until Start or Run is
// called, but work may be scheduled before that.
func NewMainDispatcher(opts *MainDispatcherOptions) *MainDispatcher {
	if opts == nil {
		opts = &MainDispatcherOptions{}
	}

	return &MainDispatcher{
		logger:       loggerOrNop(opts.Logger),
		lockOSThread: opts.LockOSThread,
		queue:        newWorkQueue(),
		doneCh:       make(chan struct{}),
	}
}

// Start runs the loop on a new goroutine.
func (d *MainDispatcher) Start() {
	d.markStarted()
	go d.run()
}

// Run runs the loop on the calling goroutine and returns once Close has been
// called and all work queued before it has run.
func (d *MainDispatcher) Run() {
	d.markStarted()
	d.run()
}

func (d *MainDispatcher) markStarted() {
	if !d.started.CompareAndSwap(false, true) {
		panic("replyx: dispatcher already started")
	}
}

func (d *MainDispatcher) run() {
	if d.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer close(d.doneCh)

	d.logger.Debug("dispatcher loop started")
	defer d.logger.Debug("dispatcher loop stopped")

	for {
		item, ok := d.queue.Next()
		if !ok {
			return
		}

		recordDispatchDelay(time.Since(item.queuedAt))
		d.invoke(item.fn)
	}
}

func (d *MainDispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("dispatched work panicked: %v", r)
			d.logger.Error("recovered panic on dispatcher goroutine", zap.Error(err))
			recordDispatchPanic()
		}
	}()

	fn()
}

func (d *MainDispatcher) Schedule(fn func()) {
	if fn == nil {
		return
	}

	if !d.queue.Push(workItem{fn: fn, queuedAt: time.Now()}) {
		d.logger.Warn("dropping work scheduled after close",
			zap.Error(ErrDispatcherClosed))
	}
}

// Close stops accepting work and waits for the loop to finish what was
// already queued. If the loop was never started, queued work is discarded,
// Done is closed and any later Start or Run panics.
// Close must not be called from work running on the dispatcher.
func (d *MainDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.queue.Close()

		// claiming the start slot keeps a racing Start/Run from closing
		// doneCh a second time.
		if d.started.CompareAndSwap(false, true) {
			if n := d.queue.Drain(); n > 0 {
				d.logger.Warn("discarding work queued on a dispatcher that never ran",
					zap.Int("count", n))
			}
			close(d.doneCh)
			return
		}

		<-d.doneCh
	})
}

// Done is closed once the loop has exited, or once Close has discarded the
// work of a dispatcher that never ran.
func (d *MainDispatcher) Done() <-chan struct{} {
	return d.doneCh
}
