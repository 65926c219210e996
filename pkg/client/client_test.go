package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librescoot/sbs-host/pkg/sbs"
	"github.com/librescoot/sbs-host/pkg/serialworker"
)

// newTestClient builds a Client around a hand-fed signal channel, bypassing
// serialworker.New so these tests never touch a real serial port.
func newTestClient() (*Client, chan sbs.RawSignalFrame) {
	signals := make(chan sbs.RawSignalFrame, 4)
	c := &Client{
		signals:      signals,
		cache:        make(map[sbs.FrameID]*sbs.SignalFrameValue),
		stopDispatch: make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	go c.dispatchLoop()
	return c, signals
}

func populatedDescriptor(id sbs.FrameID) sbs.FrameDescriptor {
	return sbs.FrameDescriptor{
		ID:   id,
		Name: "engine",
		Signals: []sbs.SignalDescriptor{
			{Name: "rpm", Type: sbs.Type{Kind: sbs.KindUint16}},
		},
	}
}

func (c *Client) stopForTest() {
	close(c.stopDispatch)
	<-c.dispatchDone
}

func TestGetFramesReturnsSortedCopyWithoutTouchingWorker(t *testing.T) {
	c, _ := newTestClient()
	defer c.stopForTest()

	sfv3 := sbs.NewSignalFrameValue(populatedDescriptor(3))
	sfv1 := sbs.NewSignalFrameValue(populatedDescriptor(1))
	c.cache[3] = &sfv3
	c.cache[1] = &sfv1

	frames, err := c.GetFrames(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, sbs.FrameID(1), frames[0].ID)
	require.Equal(t, sbs.FrameID(3), frames[1].ID)
}

func TestDispatchLoopDecodesAndInvokesCallbacks(t *testing.T) {
	c, signals := newTestClient()
	defer c.stopForTest()

	sfv := sbs.NewSignalFrameValue(populatedDescriptor(1))
	c.mu.Lock()
	c.cache[1] = &sfv
	c.mu.Unlock()

	var mu sync.Mutex
	var got sbs.SignalFrameValue
	var gotFrameID sbs.FrameID
	done := make(chan struct{})
	c.AddCallback(func(frameID sbs.FrameID, value sbs.SignalFrameValue) {
		mu.Lock()
		gotFrameID = frameID
		got = value
		mu.Unlock()
		close(done)
	})

	signals <- sbs.RawSignalFrame{FrameID: 1, Timestamp: 42, Data: []byte{0x34, 0x12}}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, sbs.FrameID(1), gotFrameID)
	require.Equal(t, uint32(42), got.Timestamp)
	require.Equal(t, uint16(0x1234), got.Values[0].U16)
}

func TestDispatchLoopDropsUnknownFrameID(t *testing.T) {
	c, signals := newTestClient()
	defer c.stopForTest()

	c.AddCallback(func(sbs.FrameID, sbs.SignalFrameValue) {
		t.Fatal("callback must not fire for an unknown frame id")
	})

	signals <- sbs.RawSignalFrame{FrameID: 99, Timestamp: 1, Data: []byte{0x01}}

	// give the dispatcher a moment to (not) act; absence of a panic/fatal
	// within this window is the assertion.
	time.Sleep(50 * time.Millisecond)
}

func TestDispatchLoopDropsUndecodableFrame(t *testing.T) {
	c, signals := newTestClient()
	defer c.stopForTest()

	sfv := sbs.NewSignalFrameValue(populatedDescriptor(1))
	c.mu.Lock()
	c.cache[1] = &sfv
	c.mu.Unlock()

	c.AddCallback(func(sbs.FrameID, sbs.SignalFrameValue) {
		t.Fatal("callback must not fire for an undecodable frame")
	})

	// rpm is a uint16 (2 bytes); one byte is too short to decode.
	signals <- sbs.RawSignalFrame{FrameID: 1, Timestamp: 1, Data: []byte{0x01}}

	time.Sleep(50 * time.Millisecond)

	c.mu.RLock()
	defer c.mu.RUnlock()
	require.Equal(t, uint32(0), c.cache[1].Timestamp, "stale value must survive a failed decode")
}

func TestDisconnectClearsCache(t *testing.T) {
	c, _ := newTestClient()
	c.worker, _ = serialworker.New()
	defer c.stopForTest()
	defer c.worker.Stop()

	sfv := sbs.NewSignalFrameValue(populatedDescriptor(1))
	c.mu.Lock()
	c.cache[1] = &sfv
	c.mu.Unlock()

	// the worker is never connected, so Disconnect reports an error, but
	// the cache must still be cleared unconditionally.
	_ = c.Disconnect(context.Background())

	c.mu.RLock()
	defer c.mu.RUnlock()
	require.Empty(t, c.cache)
}

func TestAddCallbackIsAppendOnly(t *testing.T) {
	c, _ := newTestClient()
	defer c.stopForTest()

	var calls []int
	var mu sync.Mutex
	c.AddCallback(func(sbs.FrameID, sbs.SignalFrameValue) {
		mu.Lock()
		calls = append(calls, 1)
		mu.Unlock()
	})
	c.AddCallback(func(sbs.FrameID, sbs.SignalFrameValue) {
		mu.Lock()
		calls = append(calls, 2)
		mu.Unlock()
	})

	require.Len(t, c.callbacks, 2)
}
