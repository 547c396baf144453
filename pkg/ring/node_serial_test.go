package ring

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/serial"
)

type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipePort) Close() error {
	p.r.Close()
	p.w.Close()
	return nil
}

func TestHeadStopsBeforeStartWithoutHalt(t *testing.T) {
	rxR, rxW := io.Pipe()
	txR, txW := io.Pipe()
	defer rxW.Close()
	defer txR.Close()

	ch := serial.NewChannel(&pipePort{r: rxR, w: txW})
	node := NewNode(RoleHead, ch)
	halted := make(chan error, 1)
	node.Halter = HaltFunc(func(err error) { halted <- err })

	ctx, cancel := context.WithCancel(context.Background())
	runner := fx.NewRunnerWith(ctx).Add(ch, node)
	for !ch.Armed() {
		time.Sleep(time.Millisecond)
	}
	cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Wait() }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("head didn't stop")
	}
	select {
	case err := <-halted:
		t.Fatalf("halted on stop: %v", err)
	default:
	}
	require.Equal(t, StateIdle, node.State())
}
