package sh

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tokenring/pkg/ring"
	"github.com/robotalks/tokenring/pkg/serial"
)

type fakePort struct {
	sent  []byte
	inbox []byte
}

func (p *fakePort) Send(b []byte, maxWait time.Duration) error {
	p.sent = append(p.sent, b...)
	return nil
}

func (p *fakePort) Receive(b []byte, maxWait time.Duration) error {
	if len(p.inbox) < len(b) {
		return serial.ErrTimeout
	}
	copy(b, p.inbox)
	p.inbox = p.inbox[len(b):]
	return nil
}

func TestControllerStart(t *testing.T) {
	port := &fakePort{}
	c := &Controller{Port: port}
	require.NoError(t, c.Start(DefaultStartByte))
	require.Equal(t, []byte{0x01}, port.sent)
}

func TestControllerWatch(t *testing.T) {
	port := &fakePort{inbox: []byte{0xAA, 'T', 0x0d}}
	c := &Controller{Port: port}
	var got []string
	require.NoError(t, c.Watch(2, time.Millisecond, func(b byte) {
		got = append(got, FormatByte(b))
	}))
	require.Equal(t, []string{"aa", `54 'T'`}, got)

	got = nil
	require.Equal(t, serial.ErrTimeout, c.Watch(0, time.Millisecond, func(b byte) {
		got = append(got, FormatByte(b))
	}))
	require.Equal(t, []string{"0d"}, got)
}

// ttyBuffer returns everything the kernel buffered in one read.
type ttyBuffer struct {
	rx *bytes.Reader
}

func (b *ttyBuffer) Read(p []byte) (int, error) {
	if b.rx.Len() == 0 {
		return 0, io.EOF
	}
	return b.rx.Read(p)
}

func (b *ttyBuffer) Write(p []byte) (int, error) {
	return len(p), nil
}

func TestControllerWatchBurst(t *testing.T) {
	stream := serial.NewStream(&ttyBuffer{rx: bytes.NewReader([]byte(ring.HeadNotification))})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	c := &Controller{Port: stream}
	var got []byte
	require.NoError(t, c.Watch(len(ring.HeadNotification), 200*time.Millisecond, func(b byte) {
		got = append(got, b)
	}))
	require.Equal(t, ring.HeadNotification, string(got))
}

func TestParseByte(t *testing.T) {
	b, err := ParseByte("0xaa")
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), b)
	b, err = ParseByte("7")
	require.NoError(t, err)
	require.Equal(t, byte(7), b)
	_, err = ParseByte("256")
	require.Error(t, err)
}
