package ring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tokenring/pkg/telemetry"
)

type opLog struct {
	lock sync.Mutex
	ops  []string
}

func (l *opLog) add(format string, args ...interface{}) {
	l.lock.Lock()
	l.ops = append(l.ops, fmt.Sprintf(format, args...))
	l.lock.Unlock()
}

func (l *opLog) take() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	ops := l.ops
	l.ops = nil
	return ops
}

type fakeChannel struct {
	name    string
	log     *opLog
	startCh chan byte
	armErr  error

	lock    sync.Mutex
	armed   []byte
	done    func()
	armedCh chan struct{}
}

func newFakeChannel(name string, log *opLog) *fakeChannel {
	return &fakeChannel{
		name:    name,
		log:     log,
		startCh: make(chan byte, 1),
		armedCh: make(chan struct{}, 16),
	}
}

func (c *fakeChannel) Send(p []byte, maxWait time.Duration) error {
	c.log.add("%s.send %q", c.name, p)
	return nil
}

func (c *fakeChannel) Receive(p []byte, maxWait time.Duration) error {
	b, ok := <-c.startCh
	if !ok {
		return errors.New("closed")
	}
	p[0] = b
	c.log.add("%s.receive %02x", c.name, b)
	return nil
}

func (c *fakeChannel) ReceiveAsync(p []byte, done func()) error {
	if c.armErr != nil {
		return c.armErr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.armed != nil {
		return errors.New("busy")
	}
	c.armed, c.done = p, done
	c.log.add("%s.arm", c.name)
	c.armedCh <- struct{}{}
	return nil
}

func (c *fakeChannel) isArmed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.armed != nil
}

// deliver simulates a byte landing in the armed buffer.
func (c *fakeChannel) deliver(t *testing.T, b byte) {
	c.lock.Lock()
	buf, done := c.armed, c.done
	c.armed, c.done = nil, nil
	c.lock.Unlock()
	require.NotNil(t, buf, "no receive armed")
	buf[0] = b
	done()
}

func (c *fakeChannel) waitArmed(t *testing.T) {
	select {
	case <-c.armedCh:
	case <-time.After(time.Second):
		t.Fatal("wait armed timeout")
	}
}

type fakeIndicator struct {
	log *opLog
}

func (i *fakeIndicator) Set(on bool) error {
	i.log.add("led %v", on)
	return nil
}

type fakeClock struct {
	log *opLog
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.log.add("sleep %v", d)
}

type nodeTestEnv struct {
	t      *testing.T
	log    *opLog
	ch     *fakeChannel
	node   *Node
	rec    *telemetry.Recorder
	cancel func()
	doneCh chan error
}

func newNodeTestEnv(t *testing.T, role Role) *nodeTestEnv {
	log := &opLog{}
	env := &nodeTestEnv{
		t:   t,
		log: log,
		ch:  newFakeChannel("uart", log),
		rec: &telemetry.Recorder{},
	}
	env.node = NewNode(role, env.ch)
	env.node.Indicator = &fakeIndicator{log: log}
	env.node.Clock = &fakeClock{log: log}
	env.node.Observer = env.rec
	env.node.Halter = HaltFunc(func(err error) {
		log.add("halt %v", err)
	})
	return env
}

func (e *nodeTestEnv) start() *nodeTestEnv {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.doneCh = make(chan error, 1)
	go func() {
		e.doneCh <- e.node.Run(ctx)
	}()
	return e
}

func (e *nodeTestEnv) stop() error {
	e.cancel()
	select {
	case err := <-e.doneCh:
		return err
	case <-time.After(time.Second):
		e.t.Fatal("node stop timeout")
	}
	return nil
}

func (e *nodeTestEnv) waitEvents(kind telemetry.Kind, n int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(e.t, e.rec.Wait(ctx, telemetry.Match("", kind), n))
}

func TestRelayBootstrapArmsOnly(t *testing.T) {
	env := newNodeTestEnv(t, RoleRelay).start()
	env.ch.waitArmed(t)
	require.Equal(t, []string{"uart.arm"}, env.log.take())
	require.Equal(t, StateArmed, env.node.State())
	require.Equal(t, context.Canceled, env.stop())
}

func TestHeadWaitsForStartBeforeToken(t *testing.T) {
	env := newNodeTestEnv(t, RoleHead).start()
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, env.log.take(), "head acted before start byte")
	require.Equal(t, StateIdle, env.node.State())

	env.ch.startCh <- 0x01
	env.ch.waitArmed(t)
	require.Equal(t, []string{
		"uart.receive 01",
		`uart.send "\xaa"`,
		"uart.arm",
	}, env.log.take())
	env.stop()
}

func TestRelayForwardsIdentity(t *testing.T) {
	env := newNodeTestEnv(t, RoleRelay).start()
	defer env.stop()
	env.ch.waitArmed(t)
	env.log.take()

	values := []byte{0xAA, 0x00, 0xFF, 'T', 0x7f}
	for n, b := range values {
		env.ch.deliver(t, b)
		env.ch.waitArmed(t)
		env.waitEvents(telemetry.Armed, n+2)
		require.Equal(t, []string{
			"led true",
			"sleep 250ms",
			"led false",
			fmt.Sprintf("uart.send %q", []byte{b}),
			"uart.arm",
		}, env.log.take(), "byte %02x", b)
	}
}

func TestHeadNotifiesBeforeForward(t *testing.T) {
	env := newNodeTestEnv(t, RoleHead)
	env.node.Hold = 5 * time.Millisecond
	env.start()
	defer env.stop()
	env.ch.startCh <- 0x55
	env.ch.waitArmed(t)
	env.log.take()

	for i := 0; i < 2; i++ {
		env.ch.deliver(t, 0xAA)
		env.ch.waitArmed(t)
		require.Equal(t, []string{
			"led true",
			"sleep 5ms",
			"led false",
			fmt.Sprintf("uart.send %q", HeadNotification),
			`uart.send "\xaa"`,
			"uart.arm",
		}, env.log.take())
	}
	require.Equal(t, 2, env.rec.Count(telemetry.Match("head", telemetry.Notified)))
}

func TestHeadNotifiesOnConsole(t *testing.T) {
	env := newNodeTestEnv(t, RoleHead)
	env.node.Console = newFakeChannel("console", env.log)
	env.start()
	defer env.stop()
	env.ch.startCh <- 0x00
	env.ch.waitArmed(t)
	env.log.take()

	env.ch.deliver(t, 0xAA)
	env.ch.waitArmed(t)
	require.Equal(t, []string{
		"led true",
		"sleep 250ms",
		"led false",
		fmt.Sprintf("console.send %q", HeadNotification),
		`uart.send "\xaa"`,
		"uart.arm",
	}, env.log.take())
}

func TestRearmOnlyAfterForward(t *testing.T) {
	env := newNodeTestEnv(t, RoleRelay).start()
	defer env.stop()
	env.ch.waitArmed(t)

	env.ch.deliver(t, 0x42)
	env.waitEvents(telemetry.Armed, 2)
	events := env.rec.Events()
	var kinds []telemetry.Kind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []telemetry.Kind{
		telemetry.Armed,
		telemetry.Received,
		telemetry.IndicatorOn,
		telemetry.IndicatorOff,
		telemetry.Forwarded,
		telemetry.Armed,
	}, kinds)
	require.True(t, env.ch.isArmed())
}

func TestStallsSilentlyWhenRearmFails(t *testing.T) {
	env := newNodeTestEnv(t, RoleRelay).start()
	env.ch.waitArmed(t)
	env.ch.armErr = errors.New("hal error")
	env.log.take()

	env.ch.deliver(t, 0xAA)
	env.waitEvents(telemetry.Stalled, 1)
	require.Equal(t, StateStalled, env.node.State())
	require.False(t, env.ch.isArmed())
	require.Equal(t, []string{
		"led true",
		"sleep 250ms",
		"led false",
		`uart.send "\xaa"`,
	}, env.log.take())
	require.Equal(t, context.Canceled, env.stop())
}

func TestIgnoresForeignCompletion(t *testing.T) {
	env := newNodeTestEnv(t, RoleRelay)
	require.NoError(t, env.node.Bootstrap())
	env.log.take()

	env.node.handle(Event{Source: newFakeChannel("other", env.log)})
	require.Empty(t, env.log.take())
	require.Equal(t, StateArmed, env.node.State())
}

func TestBootstrapFailureHalts(t *testing.T) {
	env := newNodeTestEnv(t, RoleHead)
	close(env.ch.startCh)
	err := env.node.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"halt wait for start: closed"}, env.log.take())
}

func TestNoChannel(t *testing.T) {
	require.Equal(t, ErrNoChannel, NewNode(RoleRelay, nil).Bootstrap())
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("head")
	require.NoError(t, err)
	require.Equal(t, RoleHead, role)
	role, err = ParseRole("relay")
	require.NoError(t, err)
	require.Equal(t, RoleRelay, role)
	_, err = ParseRole("tail")
	require.Error(t, err)
}
