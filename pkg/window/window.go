// Package window implements the sliding-window buffer (C6): a single
// dedicated goroutine tracking recent (timestamp, value) samples per signal,
// decoupling the sample rate from however fast a consumer polls snapshots.
package window

import (
	"github.com/librescoot/sbs-host/pkg/sbs"
)

const defaultWindowMS = 10000

// SignalID identifies one signal within a frame, addressed by frame id and
// signal name (matching sbs.SignalID).
type SignalID = sbs.SignalID

// Sample is one (timestamp, value) pair recorded for a signal.
type Sample struct {
	Timestamp uint32
	Value     sbs.Value
}

// Snapshot is a point-in-time copy of the whole window buffer.
type Snapshot map[SignalID][]Sample

// Buffer is the sliding-window worker's handle. The zero value is not
// valid; use New.
type Buffer struct {
	commands   chan command
	snapshotCh chan Snapshot
	stopped    chan struct{}
}

type commandKind int

const (
	cmdSetWindow commandKind = iota
	cmdAddSignal
	cmdRemoveSignal
	cmdProcessFrame
	cmdTakeSnapshot
	cmdQuit
)

type command struct {
	kind     commandKind
	windowMS uint32
	signalID SignalID
	frameID  sbs.FrameID
	value    sbs.SignalFrameValue
}

// New starts the window-buffer worker goroutine.
func New() *Buffer {
	b := &Buffer{
		commands:   make(chan command, 16),
		snapshotCh: make(chan Snapshot, 1),
		stopped:    make(chan struct{}),
	}
	go runWorker(b.commands, b.snapshotCh, b.stopped)
	return b
}

// SetWindow sets the retention window, in seconds.
func (b *Buffer) SetWindow(seconds uint32) {
	b.commands <- command{kind: cmdSetWindow, windowMS: seconds * 1000}
}

// AddSignal starts tracking id.
func (b *Buffer) AddSignal(id SignalID) {
	b.commands <- command{kind: cmdAddSignal, signalID: id}
}

// RemoveSignal stops tracking id and discards its buffered samples.
func (b *Buffer) RemoveSignal(id SignalID) {
	b.commands <- command{kind: cmdRemoveSignal, signalID: id}
}

// ProcessFrame feeds a decoded signal-frame value into the buffer: every
// tracked signal present in the frame gets its latest sample appended and
// the deque trimmed to the window.
func (b *Buffer) ProcessFrame(frameID sbs.FrameID, value sbs.SignalFrameValue) {
	b.commands <- command{kind: cmdProcessFrame, frameID: frameID, value: value}
}

// RequestSnapshot asks the worker to clone its current state onto the
// snapshot channel. It does not wait for the clone to complete; call
// PollSnapshot afterward to pick it up without blocking.
func (b *Buffer) RequestSnapshot() {
	b.commands <- command{kind: cmdTakeSnapshot}
}

// PollSnapshot non-blockingly checks whether a requested snapshot is ready.
// ok is false if no snapshot has been requested, or the worker has not
// produced it yet.
func (b *Buffer) PollSnapshot() (snap Snapshot, ok bool) {
	select {
	case snap = <-b.snapshotCh:
		return snap, true
	default:
		return nil, false
	}
}

// Quit stops the worker goroutine.
func (b *Buffer) Quit() {
	b.commands <- command{kind: cmdQuit}
	<-b.stopped
}

type worker struct {
	windowMS uint32
	tracked  map[SignalID]bool
	buf      map[SignalID][]Sample
}

func runWorker(commands <-chan command, snapshotCh chan<- Snapshot, stopped chan<- struct{}) {
	defer close(stopped)

	w := &worker{
		windowMS: defaultWindowMS,
		tracked:  make(map[SignalID]bool),
		buf:      make(map[SignalID][]Sample),
	}

	for cmd := range commands {
		switch cmd.kind {
		case cmdSetWindow:
			w.windowMS = cmd.windowMS
		case cmdAddSignal:
			w.tracked[cmd.signalID] = true
		case cmdRemoveSignal:
			delete(w.tracked, cmd.signalID)
			delete(w.buf, cmd.signalID)
		case cmdProcessFrame:
			w.processFrame(cmd.frameID, cmd.value)
		case cmdTakeSnapshot:
			publishSnapshot(snapshotCh, w.snapshot())
		case cmdQuit:
			return
		}
	}
}

// publishSnapshot drops any previously requested, never-polled snapshot and
// publishes the new one, so PollSnapshot only ever sees the freshest result
// and neither side of the handoff blocks.
func publishSnapshot(ch chan<- Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (w *worker) processFrame(frameID sbs.FrameID, value sbs.SignalFrameValue) {
	for i, sig := range value.Descriptor.Signals {
		id := SignalID{FrameID: frameID, Name: sig.Name}
		if !w.tracked[id] {
			continue
		}

		sample := Sample{Timestamp: value.Timestamp, Value: value.Values[i]}
		deque := append(w.buf[id], sample)
		deque = trimToWindow(deque, w.windowMS)
		w.buf[id] = deque
	}
}

// trimToWindow pops from the front while the current sample is more than
// windowMS past the front sample. Timestamps are u32 milliseconds from the
// device; the subtraction wraps, and a wrapped result is treated as
// in-range — a known simplification carried over from the reference
// window buffer rather than fixed here.
func trimToWindow(deque []Sample, windowMS uint32) []Sample {
	if len(deque) == 0 {
		return deque
	}
	current := deque[len(deque)-1].Timestamp
	front := 0
	for front < len(deque)-1 && current-deque[front].Timestamp > windowMS {
		front++
	}
	if front == 0 {
		return deque
	}
	return append([]Sample(nil), deque[front:]...)
}

func (w *worker) snapshot() Snapshot {
	out := make(Snapshot, len(w.buf))
	for id, deque := range w.buf {
		out[id] = append([]Sample(nil), deque...)
	}
	return out
}
