package ring

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/telemetry"
)

// Token is the single byte circulating in the chain.
type Token byte

// Protocol constants.
const (
	DefaultToken     Token = 0xAA
	DefaultHold            = 250 * time.Millisecond
	HeadNotification       = "Token received by HEAD STM32\r\n"
)

// Event is a receive completion posted to a node.
type Event struct {
	Source Channel
}

// Node is a single member of the chain.
type Node struct {
	ID    string
	Role  Role
	Token Token
	// Hold is how long the indicator stays on per reception.
	Hold      time.Duration
	Channel   Channel
	Indicator Indicator
	Clock     Clock
	Halter    Halter
	Observer  telemetry.Observer
	// Console receives the head notification. Nil means Channel.
	Console Channel

	rxBuf  [1]byte
	events chan Event
	state  stateVar
}

// NewNode creates a Node with default settings.
func NewNode(role Role, ch Channel) *Node {
	return &Node{
		ID:        role.String(),
		Role:      role,
		Token:     DefaultToken,
		Hold:      DefaultHold,
		Channel:   ch,
		Indicator: nopIndicator{},
		Clock:     SystemClock{},
		Halter:    ParkHalter{},
		events:    make(chan Event, 1),
	}
}

// State gets the current state.
func (n *Node) State() State {
	return n.state.load()
}

// Name implements Named.
func (n *Node) Name() string {
	return "node:" + n.ID
}

// Bootstrap performs the role-dependent start sequence and arms the
// first receive. The head blocks until the start byte arrives.
func (n *Node) Bootstrap() error {
	if n.Channel == nil {
		return ErrNoChannel
	}
	if n.Role == RoleHead {
		var start [1]byte
		if err := n.Channel.Receive(start[:], Forever); err != nil {
			return fmt.Errorf("wait for start: %v", err)
		}
		n.emit(telemetry.StartReceived, start[0])
		if err := n.Channel.Send([]byte{byte(n.Token)}, Forever); err != nil {
			return fmt.Errorf("send token: %v", err)
		}
		n.state.store(StateTokenSent)
		n.emit(telemetry.TokenSent, byte(n.Token))
	}
	if err := n.arm(); err != nil {
		return fmt.Errorf("arm receive: %v", err)
	}
	return nil
}

// Run implements Runnable. It bootstraps the node and then processes
// receive completions one at a time until ctx is done. A bootstrap
// failure is handed to the Halter unless the node is being stopped.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Bootstrap(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.Halter.Halt(err)
		return err
	}
	glog.V(1).Infof("%s: %s running", n.ID, n.Role)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-n.events:
			n.handle(ev)
		}
	}
}

// AddToRunner implements RunnerAdder.
func (n *Node) AddToRunner(r *fx.Runner) {
	r.Go(n)
}

func (n *Node) arm() error {
	if n.events == nil {
		n.events = make(chan Event, 1)
	}
	n.state.store(StateArmed)
	if err := n.Channel.ReceiveAsync(n.rxBuf[:], n.completed); err != nil {
		n.state.store(StateStalled)
		return err
	}
	n.emit(telemetry.Armed, 0)
	return nil
}

// completed runs in the channel's context. Only one receive is armed at
// a time so the buffered queue never blocks.
func (n *Node) completed() {
	n.events <- Event{Source: n.Channel}
}

func (n *Node) handle(ev Event) {
	if ev.Source != n.Channel {
		return
	}
	if !n.state.transit(StateArmed, StateProcessing) {
		return
	}
	b := n.rxBuf[0]
	n.emit(telemetry.Received, b)

	n.setIndicator(true)
	n.Clock.Sleep(n.Hold)
	n.setIndicator(false)

	if n.Role == RoleHead {
		console := n.Console
		if console == nil {
			console = n.Channel
		}
		if err := console.Send([]byte(HeadNotification), Forever); err != nil {
			glog.V(1).Infof("%s: notify error: %v", n.ID, err)
		} else {
			n.emit(telemetry.Notified, 0)
		}
	}

	if err := n.Channel.Send([]byte{b}, Forever); err != nil {
		glog.V(1).Infof("%s: forward error: %v", n.ID, err)
	} else {
		n.emit(telemetry.Forwarded, b)
	}

	// re-arm must stay the last step: the buffer is not touched after it.
	if err := n.arm(); err != nil {
		glog.V(1).Infof("%s: re-arm error: %v", n.ID, err)
		n.emit(telemetry.Stalled, b)
	}
}

func (n *Node) setIndicator(on bool) {
	if err := n.Indicator.Set(on); err != nil {
		glog.V(1).Infof("%s: indicator error: %v", n.ID, err)
		return
	}
	if on {
		n.emit(telemetry.IndicatorOn, 0)
	} else {
		n.emit(telemetry.IndicatorOff, 0)
	}
}

func (n *Node) emit(kind telemetry.Kind, value byte) {
	if o := n.Observer; o != nil {
		o.Observe(telemetry.Event{Node: n.ID, Kind: kind, Value: value, Time: time.Now()})
	}
}
