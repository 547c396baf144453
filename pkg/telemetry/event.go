// Package telemetry carries trace events out of a relay node.
package telemetry

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Kind classifies an Event.
type Kind int

// Event kinds.
const (
	StartReceived Kind = iota + 1
	TokenSent
	Armed
	Received
	IndicatorOn
	IndicatorOff
	Notified
	Forwarded
	Stalled
)

var kindNames = map[Kind]string{
	StartReceived: "start-received",
	TokenSent:     "token-sent",
	Armed:         "armed",
	Received:      "received",
	IndicatorOn:   "indicator-on",
	IndicatorOff:  "indicator-off",
	Notified:      "notified",
	Forwarded:     "forwarded",
	Stalled:       "stalled",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a single step taken by a node.
type Event struct {
	Node  string
	Kind  Kind
	Value byte
	Time  time.Time
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e.Kind {
	case StartReceived, TokenSent, Received, Forwarded, Stalled:
		return fmt.Sprintf("%s %s %02x", e.Node, e.Kind, e.Value)
	}
	return fmt.Sprintf("%s %s", e.Node, e.Kind)
}

// Observer receives events from a node. Observe is called synchronously
// on the node's event loop and must not block.
type Observer interface {
	Observe(Event)
}

// ObserveFunc is func form of Observer.
type ObserveFunc func(Event)

// Observe implements Observer.
func (f ObserveFunc) Observe(ev Event) {
	f(ev)
}

// Observers fans out events.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(ev Event) {
	for _, observer := range o {
		observer.Observe(ev)
	}
}

// Log writes events to glog at verbosity 1.
var Log = ObserveFunc(func(ev Event) {
	glog.V(1).Info(ev.String())
})
