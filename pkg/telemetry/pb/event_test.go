package pb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tokenring/pkg/telemetry"
)

func TestEventWireForm(t *testing.T) {
	ev := telemetry.Event{
		Node:  "node-b",
		Kind:  telemetry.Forwarded,
		Value: 0xAA,
		Time:  time.Unix(1700000000, 42),
	}
	data, err := Encode(ev)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, ev.Node, decoded.Node)
	require.Equal(t, ev.Kind, decoded.Kind)
	require.Equal(t, ev.Value, decoded.Value)
	require.True(t, ev.Time.Equal(decoded.Time))

	_, err = Decode([]byte{0xff})
	require.Error(t, err)
}
