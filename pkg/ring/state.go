package ring

import (
	"fmt"
	"sync/atomic"
)

// State is the relay state of a node.
type State int32

// States
const (
	StateIdle State = iota
	StateTokenSent
	StateArmed
	StateProcessing
	// StateStalled is terminal: re-arming failed and the node stopped relaying.
	StateStalled
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateTokenSent:  "token-sent",
	StateArmed:      "armed",
	StateProcessing: "processing",
	StateStalled:    "stalled",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type stateVar struct {
	v int32
}

func (s *stateVar) load() State {
	return State(atomic.LoadInt32(&s.v))
}

func (s *stateVar) store(st State) {
	atomic.StoreInt32(&s.v, int32(st))
}

func (s *stateVar) transit(from, to State) bool {
	return atomic.CompareAndSwapInt32(&s.v, int32(from), int32(to))
}
