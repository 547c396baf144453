package ring

import (
	"time"

	"github.com/golang/glog"
)

// Forever disables the max wait of a transfer.
const Forever time.Duration = 0

// Channel is the point-to-point byte link of a node.
type Channel interface {
	// Send blocks until p is written or maxWait elapses.
	Send(p []byte, maxWait time.Duration) error
	// Receive blocks until p is filled or maxWait elapses.
	Receive(p []byte, maxWait time.Duration) error
	// ReceiveAsync arms a receive into p. done is called once p is filled.
	ReceiveAsync(p []byte, done func()) error
}

// Indicator is the binary feedback output of a node.
type Indicator interface {
	Set(on bool) error
}

// Clock provides blocking delays.
type Clock interface {
	Sleep(time.Duration)
}

// SystemClock sleeps in real time.
type SystemClock struct{}

// Sleep implements Clock.
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Halter handles unrecoverable initialization failures.
// Halt is not expected to return.
type Halter interface {
	Halt(error)
}

// HaltFunc is func form of Halter.
type HaltFunc func(error)

// Halt implements Halter.
func (f HaltFunc) Halt(err error) {
	f(err)
}

// ParkHalter logs the failure and parks the calling goroutine forever.
// The caller is the node's only event consumer, so no further receive
// completions are dispatched.
type ParkHalter struct{}

// Halt implements Halter.
func (ParkHalter) Halt(err error) {
	glog.Errorf("fatal: %v", err)
	glog.Flush()
	select {}
}

type nopIndicator struct{}

func (nopIndicator) Set(bool) error { return nil }
