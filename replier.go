package replyx

import (
	"sync/atomic"

	"github.com/fluttercandies/replyx/zaputils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReplierOptions struct {
	// Dispatcher runs the deliveries. Defaults to DefaultDispatcher().
	Dispatcher Dispatcher
	Logger     *zap.Logger

	// Method is the name of the request being answered. It is only used to
	// label logs and spans.
	Method string
}

// Replier delivers at most one reply to a Callback. Any of Reply, ReplyError
// and NotImplemented may be called from any goroutine, any number of times;
// only the first call to take the callback has an effect and the delivery
// always happens later, on the dispatcher's goroutine.
type Replier struct {
	id         uuid.UUID
	method     string
	dispatcher Dispatcher
	logger     *zap.Logger

	callback atomic.Pointer[pendingCallback]
}

type pendingCallback struct {
	cb Callback
}

func NewReplier(cb Callback, opts *ReplierOptions) *Replier {
	if opts == nil {
		opts = &ReplierOptions{}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = DefaultDispatcher()
	}

	r := &Replier{
		id:         uuid.New(),
		method:     opts.Method,
		dispatcher: dispatcher,
	}
	r.logger = loggerOrNop(opts.Logger).With(
		zaputils.ReplierID("replierId", r.id),
		zaputils.Method("method", r.method))

	if cb != nil {
		r.callback.Store(&pendingCallback{cb: cb})
	}

	return r
}

func (r *Replier) ID() uuid.UUID {
	return r.id
}

func (r *Replier) Method() string {
	return r.method
}

func (r *Replier) Reply(value any) {
	r.complete(ReplyKindSuccess, func(cb Callback) {
		cb.Success(value)
	})
}

// ReplyError delivers an error reply. A nil message or nil details reach the
// callback as nil.
func (r *Replier) ReplyError(code string, message *string, details any) {
	r.complete(ReplyKindError, func(cb Callback) {
		cb.Error(code, message, details)
	})
}

func (r *Replier) NotImplemented() {
	r.complete(ReplyKindNotImplemented, func(cb Callback) {
		cb.NotImplemented()
	})
}

// take clears the slot before anything is scheduled, so of any number of
// concurrent completions exactly one observes the callback.
func (r *Replier) take() Callback {
	pending := r.callback.Swap(nil)
	if pending == nil {
		return nil
	}
	return pending.cb
}

func (r *Replier) complete(kind ReplyKind, deliver func(Callback)) {
	cb := r.take()
	if cb == nil {
		r.logger.Debug("dropping duplicate reply",
			zaputils.ReplyKind("kind", kind))
		recordReplyDropped(kind)
		return
	}

	recordReplyScheduled(kind)

	method := r.method
	r.dispatcher.Schedule(func() {
		span := startDeliverySpan(method, kind)
		defer span.End()

		deliver(cb)
	})
}
