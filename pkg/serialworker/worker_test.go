package serialworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librescoot/sbs-host/pkg/sbserr"
)

func TestCommandsRejectedWhileDisconnected(t *testing.T) {
	w, _ := New()
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := w.ListFrames(ctx)
	require.Error(t, err)
	sErr, ok := err.(*sbserr.Error)
	require.True(t, ok)
	require.Equal(t, sbserr.KindInvalidCommand, sErr.Kind)
}

func TestConnectToNonexistentDeviceFails(t *testing.T) {
	w, _ := New()
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := w.Connect(ctx, "/dev/this-path-does-not-exist-sbs-host", 115200)
	require.Error(t, err)
	sErr, ok := err.(*sbserr.Error)
	require.True(t, ok)
	require.Equal(t, sbserr.KindSerial, sErr.Kind)
}

func TestStopTerminatesWorkerCleanly(t *testing.T) {
	w, _ := New()
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRequestTimeoutSurfacesWhenWorkerBusy(t *testing.T) {
	// A worker with a full, never-drained command channel cannot accept a
	// new request before the context deadline, so request() must surface
	// Timeout rather than block forever.
	w := &Worker{commands: make(chan command), stopped: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.request(ctx, command{kind: cmdListFrames})
	require.Error(t, err)
	sErr, ok := err.(*sbserr.Error)
	require.True(t, ok)
	require.Equal(t, sbserr.KindTimeout, sErr.Kind)
}
