package replyx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fluttercandies/replyx/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type deliveredReply struct {
	Kind    ReplyKind
	Value   any
	Code    string
	Message *string
	Details any
}

type recordingCallback struct {
	lock       sync.Mutex
	deliveries []deliveredReply
	notifyCh   chan struct{}
}

var _ Callback = (*recordingCallback)(nil)

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{
		notifyCh: make(chan struct{}, 16),
	}
}

func (c *recordingCallback) record(r deliveredReply) {
	c.lock.Lock()
	c.deliveries = append(c.deliveries, r)
	c.lock.Unlock()

	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

func (c *recordingCallback) Success(value any) {
	c.record(deliveredReply{Kind: ReplyKindSuccess, Value: value})
}

func (c *recordingCallback) Error(code string, message *string, details any) {
	c.record(deliveredReply{Kind: ReplyKindError, Code: code, Message: message, Details: details})
}

func (c *recordingCallback) NotImplemented() {
	c.record(deliveredReply{Kind: ReplyKindNotImplemented})
}

func (c *recordingCallback) Deliveries() []deliveredReply {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]deliveredReply{}, c.deliveries...)
}

func (c *recordingCallback) WaitForDelivery(t *testing.T) deliveredReply {
	select {
	case <-c.notifyCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a delivery")
	}

	deliveries := c.Deliveries()
	require.NotEmpty(t, deliveries)
	return deliveries[0]
}

func newTestDispatcher(t *testing.T) *MainDispatcher {
	d := NewMainDispatcher(&MainDispatcherOptions{
		Logger: testutils.MakeTestLogger(t),
	})
	d.Start()
	t.Cleanup(d.Close)
	return d
}

func newTestReplier(t *testing.T, cb Callback, d Dispatcher) *Replier {
	return NewReplier(cb, &ReplierOptions{
		Dispatcher: d,
		Logger:     testutils.MakeTestLogger(t),
		Method:     "editImage",
	})
}

func ptrTo[T any](v T) *T {
	return &v
}

func TestReplierReplyDeliversValue(t *testing.T) {
	d := newTestDispatcher(t)
	cb := newRecordingCallback()
	r := newTestReplier(t, cb, d)

	type editResult struct {
		Path  string
		Bytes []byte
	}
	value := &editResult{Path: "/tmp/out.png", Bytes: []byte{1, 2, 3}}

	r.Reply(value)

	delivery := cb.WaitForDelivery(t)
	assert.Equal(t, ReplyKindSuccess, delivery.Kind)
	assert.Same(t, value, delivery.Value)
}

func TestReplierReplyNilValue(t *testing.T) {
	d := newTestDispatcher(t)
	cb := newRecordingCallback()
	r := newTestReplier(t, cb, d)

	r.Reply(nil)

	delivery := cb.WaitForDelivery(t)
	assert.Equal(t, ReplyKindSuccess, delivery.Kind)
	assert.Nil(t, delivery.Value)
}

func TestReplierReplyErrorPassesValuesThrough(t *testing.T) {
	d := newTestDispatcher(t)

	t.Run("All", func(t *testing.T) {
		cb := newRecordingCallback()
		r := newTestReplier(t, cb, d)

		details := map[string]any{"width": 0}
		r.ReplyError("invalid_size", ptrTo("width must be positive"), details)

		delivery := cb.WaitForDelivery(t)
		assert.Equal(t, ReplyKindError, delivery.Kind)
		assert.Equal(t, "invalid_size", delivery.Code)
		require.NotNil(t, delivery.Message)
		assert.Equal(t, "width must be positive", *delivery.Message)
		assert.Equal(t, details, delivery.Details)
	})

	t.Run("CodeOnly", func(t *testing.T) {
		cb := newRecordingCallback()
		r := newTestReplier(t, cb, d)

		r.ReplyError("E1", nil, nil)

		delivery := cb.WaitForDelivery(t)
		assert.Equal(t, ReplyKindError, delivery.Kind)
		assert.Equal(t, "E1", delivery.Code)
		assert.Nil(t, delivery.Message)
		assert.Nil(t, delivery.Details)
	})

	t.Run("EmptyMessageIsNotAbsent", func(t *testing.T) {
		cb := newRecordingCallback()
		r := newTestReplier(t, cb, d)

		r.ReplyError("E2", ptrTo(""), nil)

		delivery := cb.WaitForDelivery(t)
		require.NotNil(t, delivery.Message)
		assert.Equal(t, "", *delivery.Message)
	})
}

func TestReplierNotImplemented(t *testing.T) {
	d := newTestDispatcher(t)
	cb := newRecordingCallback()
	r := newTestReplier(t, cb, d)

	r.NotImplemented()

	delivery := cb.WaitForDelivery(t)
	assert.Equal(t, ReplyKindNotImplemented, delivery.Kind)
}

func TestReplierOnlyFirstCompletionDelivers(t *testing.T) {
	completions := map[string]func(r *Replier){
		"Reply":          func(r *Replier) { r.Reply("ok") },
		"ReplyError":     func(r *Replier) { r.ReplyError("E1", nil, nil) },
		"NotImplemented": func(r *Replier) { r.NotImplemented() },
	}
	firstKinds := map[string]ReplyKind{
		"Reply":          ReplyKindSuccess,
		"ReplyError":     ReplyKindError,
		"NotImplemented": ReplyKindNotImplemented,
	}

	for firstName, first := range completions {
		t.Run(firstName, func(t *testing.T) {
			d := NewMainDispatcher(nil)
			d.Start()

			cb := newRecordingCallback()
			r := newTestReplier(t, cb, d)

			first(r)
			for _, later := range completions {
				later(r)
			}

			// Close waits for everything scheduled so far to run.
			d.Close()

			deliveries := cb.Deliveries()
			require.Len(t, deliveries, 1)
			assert.Equal(t, firstKinds[firstName], deliveries[0].Kind)
		})
	}
}

func TestReplierNilCallback(t *testing.T) {
	d := NewMainDispatcher(nil)
	d.Start()

	scheduled := 0
	counting := dispatcherFunc(func(fn func()) {
		scheduled++
		d.Schedule(fn)
	})

	r := NewReplier(nil, &ReplierOptions{Dispatcher: counting})
	r.Reply("ok")
	r.NotImplemented()

	d.Close()
	assert.Equal(t, 0, scheduled)
}

func TestReplierConcurrentCompletions(t *testing.T) {
	d := NewMainDispatcher(nil)
	d.Start()

	const numRepliers = 200
	const numCallers = 8

	callbacks := make([]*recordingCallback, numRepliers)
	var wg sync.WaitGroup
	for i := 0; i < numRepliers; i++ {
		cb := newRecordingCallback()
		callbacks[i] = cb
		r := newTestReplier(t, cb, d)

		startCh := make(chan struct{})
		for c := 0; c < numCallers; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				<-startCh
				switch c % 3 {
				case 0:
					r.Reply(c)
				case 1:
					r.ReplyError("E1", nil, c)
				case 2:
					r.NotImplemented()
				}
			}(c)
		}
		close(startCh)
	}
	wg.Wait()
	d.Close()

	for i, cb := range callbacks {
		assert.Len(t, cb.Deliveries(), 1, "replier %d", i)
	}
}

func TestReplierReplyRacesReplyError(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := NewMainDispatcher(nil)
		d.Start()

		cb := newRecordingCallback()
		r := newTestReplier(t, cb, d)

		var wg sync.WaitGroup
		startCh := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-startCh
			r.Reply("ok")
		}()
		go func() {
			defer wg.Done()
			<-startCh
			r.ReplyError("E1", nil, nil)
		}()
		close(startCh)
		wg.Wait()
		d.Close()

		deliveries := cb.Deliveries()
		require.Len(t, deliveries, 1)
		switch deliveries[0].Kind {
		case ReplyKindSuccess:
			assert.Equal(t, "ok", deliveries[0].Value)
		case ReplyKindError:
			assert.Equal(t, "E1", deliveries[0].Code)
			assert.Nil(t, deliveries[0].Message)
			assert.Nil(t, deliveries[0].Details)
		default:
			t.Fatalf("unexpected delivery kind %s", deliveries[0].Kind)
		}
	}
}

func TestReplierDoesNotBlockOnBusyDispatcher(t *testing.T) {
	d := newTestDispatcher(t)

	gateCh := make(chan struct{})
	d.Schedule(func() {
		<-gateCh
	})

	cb := newRecordingCallback()
	r := newTestReplier(t, cb, d)

	returnedCh := make(chan struct{})
	go func() {
		r.Reply("late")
		r.ReplyError("ignored", nil, nil)
		close(returnedCh)
	}()

	select {
	case <-returnedCh:
	case <-time.After(time.Second):
		t.Fatal("completion blocked on a busy dispatcher")
	}
	assert.Empty(t, cb.Deliveries())

	close(gateCh)

	delivery := cb.WaitForDelivery(t)
	assert.Equal(t, "late", delivery.Value)
}

func TestReplierDeliversOnDispatcherGoroutine(t *testing.T) {
	d := newTestDispatcher(t)

	var onLoop bool
	deliveredCh := make(chan bool, 1)
	cb := CallbackFuncs{
		OnSuccess: func(value any) {
			deliveredCh <- onLoop
		},
	}
	r := newTestReplier(t, cb, d)

	// onLoop is only ever touched from the dispatcher goroutine.
	d.Schedule(func() {
		onLoop = true
		r.Reply("ok")
	})

	select {
	case wasOnLoop := <-deliveredCh:
		assert.True(t, wasOnLoop)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a delivery")
	}
}

func TestReplierDefaultDispatcher(t *testing.T) {
	cb := newRecordingCallback()
	r := NewReplier(cb, nil)

	assert.NotEqual(t, r.ID().String(), NewReplier(nil, nil).ID().String())
	assert.Equal(t, "", r.Method())

	r.Reply(42)

	delivery := cb.WaitForDelivery(t)
	assert.Equal(t, 42, delivery.Value)
}

func TestReplierLogsDroppedReplies(t *testing.T) {
	d := newTestDispatcher(t)
	core, logs := observer.New(zapcore.DebugLevel)

	cb := newRecordingCallback()
	r := NewReplier(cb, &ReplierOptions{
		Dispatcher: d,
		Logger:     zap.New(core),
		Method:     "rotate",
	})

	r.Reply("first")
	r.ReplyError("second", nil, nil)
	cb.WaitForDelivery(t)

	dropped := logs.FilterMessage("dropping duplicate reply").All()
	require.Len(t, dropped, 1)
	fields := dropped[0].ContextMap()
	assert.Equal(t, "error", fields["kind"])
	assert.Equal(t, "rotate", fields["method"])
	assert.Equal(t, r.ID().String(), fields["replierId"])
}

func TestReplierDeliverySpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		// tracers handed out before the swap stay bound to tp, so stop it
		// recording for whatever runs after this test.
		_ = tp.Shutdown(context.Background())
	})

	d := NewMainDispatcher(nil)
	d.Start()

	cb := newRecordingCallback()
	r := newTestReplier(t, cb, d)
	r.NotImplemented()
	d.Close()

	var found bool
	for _, span := range recorder.Ended() {
		if span.Name() != "replyx/deliver" {
			continue
		}
		found = true

		attribs := attribute.NewSet(span.Attributes()...)
		kind, ok := attribs.Value("replyx.reply_kind")
		require.True(t, ok)
		assert.Equal(t, "not_implemented", kind.AsString())
		method, ok := attribs.Value("rpc.method")
		require.True(t, ok)
		assert.Equal(t, "editImage", method.AsString())
	}
	assert.True(t, found)
}

type dispatcherFunc func(fn func())

func (f dispatcherFunc) Schedule(fn func()) {
	f(fn)
}
