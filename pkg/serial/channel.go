package serial

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
)

// Forever disables the max wait of a transfer.
const Forever time.Duration = 0

// Channel sends/receives raw bytes over a ReadWriter.
type Channel struct {
	// keep 64-bit aligned for atomic access on 32-bit platforms.
	overruns uint64

	Name        string
	ReadWriter  io.ReadWriter
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read

	sendLock sync.Mutex
	lock     sync.Mutex
	pending  *receive
	stopOnce sync.Once
	stopCh   chan struct{}
}

// receive is the single receive slot of a Channel.
type receive struct {
	buf  []byte
	n    int
	done func()
	wake chan struct{}
}

// NewChannel creates a Channel.
func NewChannel(rw io.ReadWriter) *Channel {
	return &Channel{
		Name:       "serial",
		ReadWriter: rw,
		stopCh:     make(chan struct{}),
	}
}

// Overruns returns the number of bytes dropped because no receive was armed.
func (c *Channel) Overruns() uint64 {
	return atomic.LoadUint64(&c.overruns)
}

// Armed indicates a receive is outstanding.
func (c *Channel) Armed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending != nil
}

// Send writes all of p. A positive maxWait bounds how long Send blocks.
// On timeout, the remaining bytes are still written before the next Send.
func (c *Channel) Send(p []byte, maxWait time.Duration) error {
	return sendWithin(maxWait, func() error {
		c.sendLock.Lock()
		defer c.sendLock.Unlock()
		glog.V(3).Infof("%s: TX % x", c.Name, p)
		return writeAll(c.ReadWriter, p)
	})
}

func sendWithin(maxWait time.Duration, write func() error) error {
	if maxWait <= 0 {
		return write()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- write()
	}()
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Receive blocks until p is filled. A positive maxWait bounds the wait.
func (c *Channel) Receive(p []byte, maxWait time.Duration) error {
	r := &receive{buf: p, wake: make(chan struct{})}
	if err := c.arm(r); err != nil {
		return err
	}
	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-r.wake:
		return nil
	case <-c.stopCh:
		if c.disarm(r) {
			return ErrClosed
		}
	case <-timeout:
		if c.disarm(r) {
			return ErrTimeout
		}
	}
	// completed concurrently with stop/timeout.
	<-r.wake
	return nil
}

// ReceiveAsync arms the receive slot to fill p and returns immediately.
// done is called on the reader goroutine once p is filled, after the slot
// is released, so done may arm the next receive.
func (c *Channel) ReceiveAsync(p []byte, done func()) error {
	return c.arm(&receive{buf: p, done: done})
}

func (c *Channel) arm(r *receive) error {
	if len(r.buf) == 0 {
		return ErrEmptyBuffer
	}
	select {
	case <-c.stopCh:
		return ErrClosed
	default:
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pending != nil {
		return ErrBusy
	}
	c.pending = r
	return nil
}

func (c *Channel) disarm(r *receive) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pending != r {
		return false
	}
	c.pending = nil
	return true
}

func (c *Channel) deliver(b byte) {
	c.lock.Lock()
	r := c.pending
	if r == nil {
		c.lock.Unlock()
		atomic.AddUint64(&c.overruns, 1)
		glog.V(3).Infof("%s: RX %02x dropped", c.Name, b)
		return
	}
	r.buf[r.n] = b
	r.n++
	if r.n < len(r.buf) {
		c.lock.Unlock()
		return
	}
	c.pending = nil
	c.lock.Unlock()

	glog.V(3).Infof("%s: RX % x", c.Name, r.buf)
	if r.done != nil {
		r.done()
	} else {
		close(r.wake)
	}
}

// Run implements Runnable.
func (c *Channel) Run(ctx context.Context) error {
	defer c.stop()
	buf := make([]byte, 1)
	if c.ReadTimeout {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			n, err := c.ReadWriter.Read(buf)
			if err != nil {
				if isTimeout(err) {
					continue
				}
				return err
			}
			if n > 0 {
				c.deliver(buf[0])
			}
		}
	}
	return fx.RunWithContextCancel(ctx, func() { c.Close() }, func() error {
		for {
			n, err := c.ReadWriter.Read(buf)
			if err != nil {
				return err
			}
			if n > 0 {
				c.deliver(buf[0])
			}
		}
	})
}

// AddToRunner implements RunnerAdder.
func (c *Channel) AddToRunner(r *fx.Runner) {
	r.Go(fx.NamedRun(c.Name, c))
}

// Close closes the underlying ReadWriter if it's a Closer.
func (c *Channel) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Channel) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
