package main

import (
	"io"
	"os"
	"runtime"

	"github.com/fluttercandies/replyx"
	"github.com/fluttercandies/replyx/contrib/asyncwritebuf"
	"github.com/fluttercandies/replyx/contrib/methodchanx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Keep main.main on the process main thread so the dispatcher loop it runs
// delivers every reply there.
func init() {
	runtime.LockOSThread()
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error {
	return os.Stdin.Close()
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	// stdout carries responses, so logs go to stderr.
	logConfig := zap.NewDevelopmentConfig()
	logConfig.OutputPaths = []string{"stderr"}
	if !cfg.Verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	dispatcher := replyx.NewMainDispatcher(&replyx.MainDispatcherOptions{
		Logger:       logger.Named("dispatcher"),
		LockOSThread: cfg.LockOSThread,
	})

	// replies are written from the main thread; keep the actual I/O off it.
	stdout := asyncwritebuf.NewWriter(os.Stdout, 64*1024)
	conn := methodchanx.NewConn(stdio{Reader: os.Stdin, Writer: stdout})
	srv := NewServer(&ServerOptions{
		Conn:       conn,
		Dispatcher: dispatcher,
		Handlers:   builtinHandlers(),
		Workers:    cfg.Workers,
		Logger:     logger.Named("server"),
	})

	logger.Debug("starting",
		zap.Int("workers", cfg.Workers),
		zap.Bool("lockOSThread", cfg.LockOSThread))

	runServer(srv, dispatcher, logger)

	if err := conn.Close(); err != nil {
		logger.Debug("failed to close stdin", zap.Error(err))
	}
	if err := stdout.Close(); err != nil {
		logger.Warn("failed to flush responses", zap.Error(err))
	}
}

// runServer runs the dispatcher loop on the calling goroutine until srv has
// read all of its input and every reply has been delivered. Serving only
// begins from inside the loop, so the Close that ends it always finds the
// loop running and drains the queued replies instead of discarding them.
func runServer(srv *Server, dispatcher *replyx.MainDispatcher, logger *zap.Logger) {
	dispatcher.Schedule(func() {
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("failed to read requests", zap.Error(err))
			}
			dispatcher.Close()
		}()
	})

	dispatcher.Run()
}
