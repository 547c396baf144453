package telemetry

import (
	"context"
	"sync"
)

// Recorder keeps all observed events in order.
type Recorder struct {
	lock    sync.Mutex
	events  []Event
	changed chan struct{}
}

// Match selects events of kind from node. Empty node matches any node.
func Match(node string, kind Kind) func(Event) bool {
	return func(ev Event) bool {
		return ev.Kind == kind && (node == "" || ev.Node == node)
	}
}

// Observe implements Observer.
func (r *Recorder) Observe(ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	if r.changed != nil {
		close(r.changed)
		r.changed = nil
	}
	r.lock.Unlock()
}

// Events returns a copy of recorded events.
func (r *Recorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

// Count counts matched events.
func (r *Recorder) Count(match func(Event) bool) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.count(match)
}

func (r *Recorder) count(match func(Event) bool) (n int) {
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return
}

// Wait blocks until at least n matched events are recorded.
func (r *Recorder) Wait(ctx context.Context, match func(Event) bool, n int) error {
	for {
		r.lock.Lock()
		if r.count(match) >= n {
			r.lock.Unlock()
			return nil
		}
		if r.changed == nil {
			r.changed = make(chan struct{})
		}
		ch := r.changed
		r.lock.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
