// Package client implements the client façade (C5): the public surface an
// application links against to discover frames, enable/disable them, and
// receive decoded signal values.
package client

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/librescoot/sbs-host/pkg/sbs"
	"github.com/librescoot/sbs-host/pkg/serialworker"
)

// Callback is invoked for every decoded signal-frame value, synchronously,
// under the client's descriptor-cache read lock. Callbacks must not block.
type Callback func(frameID sbs.FrameID, value sbs.SignalFrameValue)

// Client is the public façade over the serial worker. The zero value is not
// valid; use New.
type Client struct {
	worker  *serialworker.Worker
	signals <-chan sbs.RawSignalFrame

	mu    sync.RWMutex
	cache map[sbs.FrameID]*sbs.SignalFrameValue

	cbMu      sync.Mutex
	callbacks []Callback

	stopDispatch chan struct{}
	dispatchDone chan struct{}
}

// New creates a client and starts its background dispatcher goroutine. The
// caller must still call Connect before issuing any other operation.
func New() *Client {
	worker, signals := serialworker.New()
	c := &Client{
		worker:       worker,
		signals:      signals,
		cache:        make(map[sbs.FrameID]*sbs.SignalFrameValue),
		stopDispatch: make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// Connect opens the serial device at the given baud rate.
func (c *Client) Connect(ctx context.Context, port string, baud int) error {
	return c.worker.Connect(ctx, port, baud)
}

// Disconnect drops the serial device and clears the descriptor cache: the
// device's available frame set can change across a power cycle, so the
// next GetFrames after a reconnect always reloads rather than trusting a
// stale cache.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.worker.Disconnect(ctx)
	c.mu.Lock()
	c.cache = make(map[sbs.FrameID]*sbs.SignalFrameValue)
	c.mu.Unlock()
	return err
}

// Close disconnects the serial device and stops the dispatcher.
func (c *Client) Close() {
	_ = c.Disconnect(context.Background())
	c.worker.Stop()
	close(c.stopDispatch)
	<-c.dispatchDone
}

// GetFrames loads the descriptor cache if empty (list_frames followed by
// get_frame_info for every listed frame, all-or-nothing: a failure on any
// one frame aborts the whole load and leaves the cache empty) and returns a
// copy of the cached frames sorted by frame id ascending.
func (c *Client) GetFrames(ctx context.Context) ([]sbs.FrameDescriptor, error) {
	c.mu.RLock()
	empty := len(c.cache) == 0
	c.mu.RUnlock()

	if empty {
		if err := c.loadDescriptors(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]sbs.FrameDescriptor, 0, len(c.cache))
	for _, sfv := range c.cache {
		out = append(out, sfv.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) loadDescriptors(ctx context.Context) error {
	frames, err := c.worker.ListFrames(ctx)
	if err != nil {
		return err
	}

	loaded := make(map[sbs.FrameID]*sbs.SignalFrameValue, len(frames))
	for _, fi := range frames {
		details, err := c.worker.GetFrameInfo(ctx, fi.ID)
		if err != nil {
			return err
		}

		signals := make([]sbs.SignalDescriptor, len(details.Signals))
		for i, si := range details.Signals {
			signals[i] = sbs.SignalDescriptor{Name: si.Name, Type: si.Type}
		}

		desc := sbs.FrameDescriptor{
			ID:      sbs.FrameID(fi.ID),
			Name:    fi.Name,
			Enabled: details.Enabled,
			Signals: signals,
		}
		sfv := sbs.NewSignalFrameValue(desc)
		loaded[desc.ID] = &sfv
	}

	c.mu.Lock()
	c.cache = loaded
	c.mu.Unlock()
	return nil
}

// EnableFrame enables a frame on the device and, on success, mutates the
// cached descriptor's Enabled flag.
func (c *Client) EnableFrame(ctx context.Context, id sbs.FrameID) error {
	if err := c.worker.EnableFrame(ctx, uint32(id)); err != nil {
		return err
	}
	c.setCachedEnabled(id, true)
	return nil
}

// DisableFrame disables a frame on the device and, on success, mutates the
// cached descriptor's Enabled flag.
func (c *Client) DisableFrame(ctx context.Context, id sbs.FrameID) error {
	if err := c.worker.DisableFrame(ctx, uint32(id)); err != nil {
		return err
	}
	c.setCachedEnabled(id, false)
	return nil
}

func (c *Client) setCachedEnabled(id sbs.FrameID, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sfv, ok := c.cache[id]; ok {
		sfv.Descriptor.Enabled = enabled
	}
}

// AddCallback registers cb to be invoked on every decoded signal-frame
// value. Registration is append-only: callbacks cannot be removed.
func (c *Client) AddCallback(cb Callback) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// dispatchLoop consumes raw signal frames, decodes them against the cached
// descriptor, and invokes every registered callback. Unknown frame ids and
// decode failures are dropped silently; a race during discovery is
// tolerated rather than treated as an error.
func (c *Client) dispatchLoop() {
	defer close(c.dispatchDone)
	for {
		select {
		case <-c.stopDispatch:
			return
		case raw, ok := <-c.signals:
			if !ok {
				return
			}
			c.handleRawFrame(raw)
		}
	}
}

func (c *Client) handleRawFrame(raw sbs.RawSignalFrame) {
	c.mu.RLock()
	sfv, ok := c.cache[raw.FrameID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	updated := sfv.UpdateFromBytes(raw.Timestamp, raw.Data)
	snapshot := *sfv
	c.mu.Unlock()

	if !updated {
		log.Printf("client: dropping undecodable frame %d (%d bytes)", raw.FrameID, len(raw.Data))
		return
	}

	c.cbMu.Lock()
	cbs := make([]Callback, len(c.callbacks))
	copy(cbs, c.callbacks)
	c.cbMu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cb := range cbs {
		cb(raw.FrameID, snapshot)
	}
}
