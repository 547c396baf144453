// Package sim runs a chain of relay nodes in-process, linked by pipes.
package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/ring"
	"github.com/robotalks/tokenring/pkg/serial"
	"github.com/robotalks/tokenring/pkg/telemetry"
)

// ErrInjectedFault is returned by a faulty channel when re-arming.
var ErrInjectedFault = errors.New("injected fault")

// Chain is a running ring of nodes.
type Chain struct {
	Config   *Config
	Nodes    []*ring.Node
	Channels []*serial.Channel
	Recorder *telemetry.Recorder

	head    *ring.Node
	links   []*link
	console *link

	outputLock sync.Mutex
	output     bytes.Buffer
}

// link is the wire from one node's TX to the next node's RX.
type link struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newLink() *link {
	r, w := io.Pipe()
	return &link{r: r, w: w}
}

// port is the node side of its two links.
type port struct {
	rx *link
	tx *link
}

func (p *port) Read(b []byte) (int, error)  { return p.rx.r.Read(b) }
func (p *port) Write(b []byte) (int, error) { return p.tx.w.Write(b) }

// Close implements io.Closer.
func (p *port) Close() error {
	p.rx.r.Close()
	p.tx.w.Close()
	return nil
}

// consolePort is the head's write-only line to the controller console.
type consolePort struct {
	*io.PipeWriter
}

func (consolePort) Read([]byte) (int, error) { return 0, io.EOF }

// faultyChannel fails to re-arm after a number of receptions.
type faultyChannel struct {
	ring.Channel
	lock     sync.Mutex
	armsLeft int
}

func (c *faultyChannel) ReceiveAsync(p []byte, done func()) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.armsLeft <= 0 {
		return ErrInjectedFault
	}
	c.armsLeft--
	return c.Channel.ReceiveAsync(p, done)
}

// Build creates the chain. Nodes start when the chain is added to a Runner.
func Build(conf *Config, observers ...telemetry.Observer) (*Chain, error) {
	if err := Validate(conf); err != nil {
		return nil, err
	}
	c := &Chain{Config: conf, Recorder: &telemetry.Recorder{}}
	observer := append(telemetry.Observers{c.Recorder}, observers...)

	n := len(conf.Chain.Nodes)
	for i := 0; i < n; i++ {
		c.links = append(c.links, newLink())
	}
	for i, nc := range conf.Chain.Nodes {
		role, _ := ring.ParseRole(nc.Role)
		ch := serial.NewChannel(&port{rx: c.links[i], tx: c.links[(i+1)%n]})
		ch.Name = "uart:" + nc.ID
		c.Channels = append(c.Channels, ch)

		var nodeCh ring.Channel = ch
		if nc.Fault != nil {
			// the bootstrap arm serves the first reception.
			nodeCh = &faultyChannel{Channel: ch, armsLeft: nc.Fault.StallAfter}
		}
		node := ring.NewNode(role, nodeCh)
		node.ID = nc.ID
		node.Token = conf.Chain.TokenValue()
		node.Hold = conf.Chain.Hold()
		node.Observer = observer
		node.Halter = ring.HaltFunc(func(err error) {
			glog.Errorf("%s: halted: %v", node.ID, err)
		})
		if role == ring.RoleHead {
			c.head = node
			if conf.Chain.Console {
				c.console = newLink()
				console := serial.NewChannel(consolePort{c.console.w})
				console.Name = "console:" + nc.ID
				node.Console = console
			}
		}
		c.Nodes = append(c.Nodes, node)
	}
	return c, nil
}

// AddToRunner implements RunnerAdder.
func (c *Chain) AddToRunner(r *fx.Runner) {
	for _, ch := range c.Channels {
		r.Add(ch)
	}
	for _, node := range c.Nodes {
		r.Add(node)
	}
	if c.console != nil {
		r.Go(fx.NamedRun("console", fx.RunFunc(c.drainConsole)))
	}
}

// Head returns the head node.
func (c *Chain) Head() *ring.Node {
	return c.head
}

// WaitReady waits until every relay node armed its first receive.
// The head arms only after the start byte.
func (c *Chain) WaitReady(ctx context.Context) error {
	for _, node := range c.Nodes {
		if node.Role == ring.RoleHead {
			continue
		}
		if err := c.Recorder.Wait(ctx, telemetry.Match(node.ID, telemetry.Armed), 1); err != nil {
			return fmt.Errorf("wait %s ready: %v", node.ID, err)
		}
	}
	return nil
}

// Start plays the external controller: it sends the start byte to the head.
func (c *Chain) Start() error {
	for i, node := range c.Nodes {
		if node == c.head {
			_, err := c.links[i].w.Write([]byte{byte(c.Config.Chain.Start)})
			return err
		}
	}
	return fmt.Errorf("no head")
}

// ConsoleOutput returns what the head wrote to the controller console.
func (c *Chain) ConsoleOutput() string {
	c.outputLock.Lock()
	defer c.outputLock.Unlock()
	return c.output.String()
}

// Trace returns the recorded events of a node.
func (c *Chain) Trace(nodeID string) []telemetry.Event {
	var events []telemetry.Event
	for _, ev := range c.Recorder.Events() {
		if ev.Node == nodeID {
			events = append(events, ev)
		}
	}
	return events
}

// Close breaks all links.
func (c *Chain) Close() error {
	for _, l := range c.links {
		l.r.Close()
		l.w.Close()
	}
	if c.console != nil {
		c.console.r.Close()
	}
	return nil
}

func (c *Chain) drainConsole(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, func() { c.console.r.Close() }, func() error {
		buf := make([]byte, 64)
		for {
			n, err := c.console.r.Read(buf)
			if n > 0 {
				c.outputLock.Lock()
				c.output.Write(buf[:n])
				c.outputLock.Unlock()
			}
			if err != nil {
				return err
			}
		}
	})
}

// RunFor runs the chain until it's stopped or d elapses, then waits for
// all nodes to stop. A zero d runs until ctx is done.
func (c *Chain) RunFor(ctx context.Context, d time.Duration) error {
	if d > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	runner := fx.NewRunnerWith(ctx).Add(c)
	defer c.Close()
	err := c.WaitReady(runner.Context)
	if err == nil {
		err = c.Start()
	}
	if err != nil {
		runner.Stop()
		runner.Wait()
		return err
	}
	<-runner.Context.Done()
	return runner.Wait()
}
