package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter moves log lines to its sinks on a single goroutine. Lines are
// buffered and flushed whenever the queue drains.
type asyncWriter struct {
	queue chan pending
	done  chan struct{}
	once  sync.Once
	sinks []*bufio.Writer

	mu  sync.Mutex
	err error
}

// pending is either a line to write or, when ack is set, a flush request
// ordered behind every line queued before it.
type pending struct {
	line []byte
	ack  chan error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 << 10
	}
	w := &asyncWriter{
		queue: make(chan pending, 256),
		done:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for p := range w.queue {
		if p.ack != nil {
			p.ack <- w.flush()
			continue
		}
		w.fail(w.write(p.line))
		if len(w.queue) == 0 {
			w.fail(w.flush())
		}
	}
	w.fail(w.flush())
}

// Write queues a copy of p. It blocks only while the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- pending{line: append([]byte(nil), p...)}
	return nil
}

// Flush returns once every line queued before it reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	w.queue <- pending{ack: ack}
	if err := <-ack; err != nil {
		return err
	}
	return w.firstErr()
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) write(line []byte) error {
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
