// Package pb defines the wire form of telemetry events.
package pb

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/tokenring/pkg/telemetry"
)

// NodeEvent is the wire form of telemetry.Event.
//
//	message NodeEvent {
//		string node = 1;
//		int32 kind = 2;
//		uint32 value = 3;
//		int64 unix_nano = 4;
//	}
type NodeEvent struct {
	Node     string `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Kind     int32  `protobuf:"varint,2,opt,name=kind,proto3" json:"kind,omitempty"`
	Value    uint32 `protobuf:"varint,3,opt,name=value,proto3" json:"value,omitempty"`
	UnixNano int64  `protobuf:"varint,4,opt,name=unix_nano,json=unixNano,proto3" json:"unix_nano,omitempty"`
}

// Reset implements proto.Message.
func (m *NodeEvent) Reset() { *m = NodeEvent{} }

// String implements proto.Message.
func (m *NodeEvent) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*NodeEvent) ProtoMessage() {}

// FromEvent converts an event.
func FromEvent(ev telemetry.Event) *NodeEvent {
	m := &NodeEvent{
		Node:  ev.Node,
		Kind:  int32(ev.Kind),
		Value: uint32(ev.Value),
	}
	if !ev.Time.IsZero() {
		m.UnixNano = ev.Time.UnixNano()
	}
	return m
}

// Event converts back to telemetry.Event.
func (m *NodeEvent) Event() telemetry.Event {
	ev := telemetry.Event{
		Node:  m.Node,
		Kind:  telemetry.Kind(m.Kind),
		Value: byte(m.Value),
	}
	if m.UnixNano != 0 {
		ev.Time = time.Unix(0, m.UnixNano)
	}
	return ev
}

// Encode encodes an event.
func Encode(ev telemetry.Event) ([]byte, error) {
	return proto.Marshal(FromEvent(ev))
}

// Decode decodes an event.
func Decode(data []byte) (telemetry.Event, error) {
	var m NodeEvent
	if err := proto.Unmarshal(data, &m); err != nil {
		return telemetry.Event{}, err
	}
	return m.Event(), nil
}
