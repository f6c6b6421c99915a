package asyncwritebuf

import (
	"bufio"
	"io"
	"sync"
)

// Writer hands writes to a background goroutine so the caller only pays for
// a copy, not for the underlying I/O. Writes block only once more than the
// buffer size is waiting to be flushed.
type Writer struct {
	writer *bufio.Writer

	lock         sync.Mutex
	closed       bool
	bytesSig     *sync.Cond
	roomSig      *sync.Cond
	err          error
	bufs         [][]byte
	pendingBytes int
	doneCh       chan struct{}
}

var _ io.WriteCloser = (*Writer)(nil)

func NewWriter(w io.Writer, size int) *Writer {
	b := &Writer{
		writer: bufio.NewWriterSize(w, size),
		bufs:   make([][]byte, 0, 64),
		doneCh: make(chan struct{}),
	}

	b.bytesSig = sync.NewCond(&b.lock)
	b.roomSig = sync.NewCond(&b.lock)

	go b.run()

	return b
}

func (w *Writer) run() {
	defer close(w.doneCh)

	bufs := make([][]byte, 0, 64)

	w.lock.Lock()
	for {
		if w.err != nil {
			break
		}

		if len(w.bufs) == 0 {
			if w.closed {
				break
			}
			w.bytesSig.Wait()
			continue
		}

		bufs = append(bufs[:0], w.bufs...)
		w.bufs = w.bufs[:0]

		w.lock.Unlock()

		var err error
		var writtenBytes int
		for _, buf := range bufs {
			writtenBytes += len(buf)

			_, err = w.writer.Write(buf)
			if err != nil {
				break
			}
		}
		if err == nil {
			err = w.writer.Flush()
		}

		w.lock.Lock()

		w.pendingBytes -= writtenBytes
		if err != nil {
			w.err = err
		}
		w.roomSig.Broadcast()
	}
	w.lock.Unlock()
}

// Write copies p and queues it. It returns the first error hit by the
// background goroutine, or io.ErrClosedPipe after Close.
func (w *Writer) Write(p []byte) (int, error) {
	bufLen := len(p)
	writeBufferSize := w.writer.Size()

	w.lock.Lock()
	for {
		if w.closed {
			w.lock.Unlock()
			return 0, io.ErrClosedPipe
		}

		if w.err != nil {
			err := w.err
			w.lock.Unlock()
			return 0, err
		}

		if w.pendingBytes < writeBufferSize {
			break
		}

		w.roomSig.Wait()
	}

	w.bufs = append(w.bufs, append([]byte(nil), p...))
	w.pendingBytes += bufLen

	w.lock.Unlock()

	w.bytesSig.Signal()

	return bufLen, nil
}

// Close waits for everything already written to be flushed and returns the
// first write error, if any.
func (w *Writer) Close() error {
	w.lock.Lock()
	w.closed = true
	w.lock.Unlock()

	w.bytesSig.Signal()
	w.roomSig.Broadcast()

	<-w.doneCh

	w.lock.Lock()
	err := w.err
	w.lock.Unlock()

	return err
}
