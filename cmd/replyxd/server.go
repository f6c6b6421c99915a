package main

import (
	"io"
	"sync"

	"github.com/fluttercandies/replyx"
	"github.com/fluttercandies/replyx/contrib/methodchanx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	CodeHandlerPanic  = "handler_panic"
	CodeMissingMethod = "missing_method"
)

// HandlerFunc handles one request on a worker goroutine. It must complete r
// exactly once, possibly from another goroutine; extra completions are
// dropped.
type HandlerFunc func(req *methodchanx.Request, r *replyx.Replier)

type Server struct {
	conn       *methodchanx.Conn
	dispatcher replyx.Dispatcher
	handlers   map[string]HandlerFunc
	workers    int
	logger     *zap.Logger
}

type ServerOptions struct {
	Conn       *methodchanx.Conn
	Dispatcher replyx.Dispatcher
	Handlers   map[string]HandlerFunc
	Workers    int
	Logger     *zap.Logger
}

func NewServer(opts *ServerOptions) *Server {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		conn:       opts.Conn,
		dispatcher: opts.Dispatcher,
		handlers:   opts.Handlers,
		workers:    workers,
		logger:     logger,
	}
}

// Serve reads requests until the input ends and returns once every handler
// it started has returned. Replies may still be queued on the dispatcher.
func (s *Server) Serve() error {
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		req := &methodchanx.Request{}
		err := s.conn.ReadRequest(req)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, methodchanx.ErrMissingMethod) {
			s.logger.Warn("received request without a method", zap.Any("id", req.ID))
			msg := err.Error()
			s.newReplier(req).ReplyError(CodeMissingMethod, &msg, nil)
			continue
		}
		if err != nil {
			return err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			s.handle(req)
		}()
	}
}

func (s *Server) newReplier(req *methodchanx.Request) *replyx.Replier {
	res := methodchanx.NewResult(s.conn, req)
	res.OnWriteError = func(err error) {
		s.logger.Warn("failed to write response",
			zap.Any("id", req.ID),
			zap.Error(err))
	}

	return replyx.NewReplier(res, &replyx.ReplierOptions{
		Dispatcher: s.dispatcher,
		Logger:     s.logger,
		Method:     req.Method,
	})
}

func (s *Server) handle(req *methodchanx.Request) {
	r := s.newReplier(req)

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.logger.Debug("no handler for method", zap.String("method", req.Method))
		r.NotImplemented()
		return
	}

	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("handler panicked: %v", p)
			s.logger.Error("recovered panic in handler",
				zap.String("method", req.Method),
				zap.Error(err))

			msg := err.Error()
			r.ReplyError(CodeHandlerPanic, &msg, nil)
		}
	}()

	handler(req, r)
}
