package serial

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
)

// DefaultStreamBuffer is the number of received bytes a Stream queues.
const DefaultStreamBuffer = 4096

// Stream is the host side of a serial line. Unlike Channel, it queues
// received bytes so a burst is never dropped while nobody is receiving.
type Stream struct {
	Name        string
	ReadWriter  io.ReadWriter
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read

	sendLock sync.Mutex
	rxCh     chan byte
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStream creates a Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		Name:       "stream",
		ReadWriter: rw,
		rxCh:       make(chan byte, DefaultStreamBuffer),
		stopCh:     make(chan struct{}),
	}
}

// Send writes all of p. A positive maxWait bounds how long Send blocks.
func (s *Stream) Send(p []byte, maxWait time.Duration) error {
	return sendWithin(maxWait, func() error {
		s.sendLock.Lock()
		defer s.sendLock.Unlock()
		glog.V(3).Infof("%s: TX % x", s.Name, p)
		return writeAll(s.ReadWriter, p)
	})
}

// Receive fills p from queued bytes. A positive maxWait bounds the wait.
// Bytes consumed before a timeout are not put back.
func (s *Stream) Receive(p []byte, maxWait time.Duration) error {
	if len(p) == 0 {
		return ErrEmptyBuffer
	}
	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	for i := range p {
		select {
		case p[i] = <-s.rxCh:
			continue
		default:
		}
		select {
		case p[i] = <-s.rxCh:
		case <-s.stopCh:
			// bytes queued before stop are still delivered.
			select {
			case p[i] = <-s.rxCh:
			default:
				return ErrClosed
			}
		case <-timeout:
			return ErrTimeout
		}
	}
	return nil
}

// Run implements Runnable.
func (s *Stream) Run(ctx context.Context) error {
	defer s.stop()
	buf := make([]byte, 64)
	read := func() error {
		n, err := s.ReadWriter.Read(buf)
		for _, b := range buf[:n] {
			select {
			case s.rxCh <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if n > 0 {
			glog.V(3).Infof("%s: RX % x", s.Name, buf[:n])
		}
		return err
	}
	if s.ReadTimeout {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := read(); err != nil && !isTimeout(err) {
				return err
			}
		}
	}
	return fx.RunWithContextCancel(ctx, func() { s.Close() }, func() error {
		for {
			if err := read(); err != nil {
				return err
			}
		}
	})
}

// AddToRunner implements RunnerAdder.
func (s *Stream) AddToRunner(r *fx.Runner) {
	r.Go(fx.NamedRun(s.Name, s))
}

// Close closes the underlying ReadWriter if it's a Closer.
func (s *Stream) Close() error {
	if closer, ok := s.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Stream) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
