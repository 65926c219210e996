// Package serialworker owns the serial device: it arbitrates between
// in-flight request/response command pairs and asynchronous signal-frame
// delivery, running on a dedicated goroutine that never yields control
// cooperatively (it blocks on channel receives and blocking serial I/O),
// bridging that blocking I/O to cooperative callers through buffered
// channels and a per-request context deadline.
package serialworker

import (
	"context"
	"log"
	"time"

	"go.bug.st/serial"

	"github.com/librescoot/sbs-host/pkg/protocol"
	"github.com/librescoot/sbs-host/pkg/sbs"
	"github.com/librescoot/sbs-host/pkg/sbserr"
)

const (
	requestTimeout  = 2 * time.Second
	readTimeout     = 100 * time.Millisecond
	commandChanCap  = 16
	responseChanCap = 16
	signalChanCap   = 32
)

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdStop
	cmdListFrames
	cmdGetFrameInfo
	cmdEnableFrame
	cmdDisableFrame
)

type command struct {
	kind     commandKind
	port     string
	baud     int
	frameID  uint32
	response chan response
}

type response struct {
	err     *sbserr.Error
	frames  []protocol.FrameInfo
	details protocol.FrameDetails
}

// Worker owns the serial device and runs its state machine on a dedicated
// goroutine. The zero value is not valid; use New.
type Worker struct {
	commands chan command
	signals  chan sbs.RawSignalFrame
	stopped  chan struct{}
}

// New starts the worker goroutine. signals is the channel raw signal frames
// are forwarded to as they are decoded; the caller is expected to drain it
// continuously (capacity 32; frames are dropped, non-blocking, on overflow).
func New() (*Worker, <-chan sbs.RawSignalFrame) {
	signals := make(chan sbs.RawSignalFrame, signalChanCap)
	w := &Worker{
		commands: make(chan command, commandChanCap),
		signals:  signals,
		stopped:  make(chan struct{}),
	}
	go runWorkerThread(w.commands, signals, w.stopped)
	return w, signals
}

// Connect opens the serial port at the given baud rate (8N1), clears OS
// input/output buffers, and resets the decoder.
func (w *Worker) Connect(ctx context.Context, port string, baud int) error {
	_, err := w.request(ctx, command{kind: cmdConnect, port: port, baud: baud})
	return err
}

// Disconnect drops the serial port. The worker returns to Disconnected.
func (w *Worker) Disconnect(ctx context.Context) error {
	_, err := w.request(ctx, command{kind: cmdDisconnect})
	return err
}

// ListFrames issues a list-frames request and waits for its response.
func (w *Worker) ListFrames(ctx context.Context) ([]protocol.FrameInfo, error) {
	res, err := w.request(ctx, command{kind: cmdListFrames})
	if err != nil {
		return nil, err
	}
	return res.frames, nil
}

// GetFrameInfo issues a get-frame-info request and waits for its response.
func (w *Worker) GetFrameInfo(ctx context.Context, frameID uint32) (protocol.FrameDetails, error) {
	res, err := w.request(ctx, command{kind: cmdGetFrameInfo, frameID: frameID})
	if err != nil {
		return protocol.FrameDetails{}, err
	}
	return res.details, nil
}

// EnableFrame issues an enable-frame request and waits for its acknowledgement.
func (w *Worker) EnableFrame(ctx context.Context, frameID uint32) error {
	_, err := w.request(ctx, command{kind: cmdEnableFrame, frameID: frameID})
	return err
}

// DisableFrame issues a disable-frame request and waits for its acknowledgement.
func (w *Worker) DisableFrame(ctx context.Context, frameID uint32) error {
	_, err := w.request(ctx, command{kind: cmdDisableFrame, frameID: frameID})
	return err
}

// Stop terminates the worker goroutine cleanly and waits for it to exit.
func (w *Worker) Stop() {
	w.commands <- command{kind: cmdStop}
	<-w.stopped
}

// request sends req and awaits its response, enforcing the per-request
// 2-second deadline via ctx. On deadline expiry the worker's in-flight
// state is not rolled back: the next response it produces will be discarded
// as unexpected by the then-idle worker.
func (w *Worker) request(ctx context.Context, req command) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req.response = make(chan response, 1)

	select {
	case w.commands <- req:
	case <-ctx.Done():
		return response{}, sbserr.Timeout()
	}

	select {
	case res := <-req.response:
		if res.err != nil {
			return response{}, res.err
		}
		return res, nil
	case <-ctx.Done():
		return response{}, sbserr.Timeout()
	}
}

// workerState is the serial worker's top-level state machine:
// Disconnected -> Connected <-> {ListFrames, GetFrameInfo, EnableFrame, DisableFrame}
type workerState int

const (
	wsDisconnected workerState = iota
	wsConnected
	wsListFrames
	wsGetFrameInfo
	wsEnableFrame
	wsDisableFrame
)

type thread struct {
	commands <-chan command
	signals  chan<- sbs.RawSignalFrame

	state   workerState
	port    serial.Port
	decoder *protocol.Decoder

	// the command whose response is outstanding while in a
	// response-waiting state.
	pending command
}

func runWorkerThread(commands <-chan command, signals chan<- sbs.RawSignalFrame, stopped chan<- struct{}) {
	defer close(stopped)

	t := &thread{commands: commands, signals: signals, state: wsDisconnected, decoder: protocol.NewDecoder()}

	for {
		quit := false
		switch t.state {
		case wsDisconnected:
			quit = t.handleDisconnected()
		case wsConnected:
			quit = t.handleConnected()
		case wsListFrames, wsGetFrameInfo, wsEnableFrame, wsDisableFrame:
			t.handleResponseWait()
		}
		if quit {
			return
		}
	}
}

func (t *thread) handleDisconnected() (quit bool) {
	cmd, ok := <-t.commands
	if !ok {
		return true
	}

	switch cmd.kind {
	case cmdConnect:
		mode := &serial.Mode{BaudRate: cmd.baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
		port, err := serial.Open(cmd.port, mode)
		if err != nil {
			reply(cmd, response{err: sbserr.Serial("failed to open serial port: " + err.Error())})
			return false
		}
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			reply(cmd, response{err: sbserr.Serial("failed to set read timeout: " + err.Error())})
			return false
		}
		if err := port.ResetInputBuffer(); err != nil {
			log.Printf("serialworker: failed to reset input buffer: %v", err)
		}
		if err := port.ResetOutputBuffer(); err != nil {
			log.Printf("serialworker: failed to reset output buffer: %v", err)
		}

		t.port = port
		t.decoder = protocol.NewDecoder()
		reply(cmd, response{})
		t.state = wsConnected
		return false

	case cmdStop:
		return true

	default:
		reply(cmd, response{err: sbserr.InvalidCommand("command unavailable while disconnected")})
		return false
	}
}

func (t *thread) handleConnected() (quit bool) {
	select {
	case cmd, ok := <-t.commands:
		if !ok {
			return true
		}
		if t.dispatchConnectedCommand(cmd) {
			return cmd.kind == cmdStop
		}
	default:
	}

	buf := make([]byte, 2048)
	n, err := t.port.Read(buf)
	if err != nil {
		log.Printf("serialworker: serial read error while connected: %v", err)
		return false
	}
	if n == 0 {
		// read timeout elapsed with no data available
		return false
	}

	t.decoder.AddData(buf[:n])
	t.drainDecoderWhileConnected()
	return false
}

// dispatchConnectedCommand handles a command received while Connected. It
// returns true if the command transitioned out of the idle read loop (i.e.
// the caller should restart the state-machine loop immediately).
func (t *thread) dispatchConnectedCommand(cmd command) bool {
	switch cmd.kind {
	case cmdDisconnect:
		t.port.Close()
		t.port = nil
		reply(cmd, response{})
		t.state = wsDisconnected
		return true

	case cmdStop:
		if t.port != nil {
			t.port.Close()
		}
		t.state = wsDisconnected
		return true

	case cmdListFrames:
		t.sendRequest(cmd, protocol.EncodeListFrames(), wsListFrames)
	case cmdGetFrameInfo:
		t.sendRequest(cmd, protocol.EncodeGetFrameInfo(cmd.frameID), wsGetFrameInfo)
	case cmdEnableFrame:
		t.sendRequest(cmd, protocol.EncodeEnableFrame(cmd.frameID), wsEnableFrame)
	case cmdDisableFrame:
		t.sendRequest(cmd, protocol.EncodeDisableFrame(cmd.frameID), wsDisableFrame)
	case cmdConnect:
		reply(cmd, response{err: sbserr.InvalidCommand("already connected")})
	}
	return true
}

func (t *thread) sendRequest(cmd command, req []byte, next workerState) {
	if _, err := t.port.Write(req); err != nil {
		reply(cmd, response{err: sbserr.Serial("failed to send request: " + err.Error())})
		return
	}
	t.pending = cmd
	t.state = next
}

// drainDecoderWhileConnected forwards every SignalFrame event to the signal
// channel; CmdFrame/Err events are anomalous while idle and are logged, not
// surfaced, since no command is outstanding to receive them.
func (t *thread) drainDecoderWhileConnected() {
	for {
		res := t.decoder.Decode()
		switch res.Kind {
		case protocol.ResultNone:
			return
		case protocol.ResultSignalFrame:
			t.forwardSignalFrame(res.Signal)
		case protocol.ResultCmdFrame:
			log.Printf("serialworker: unexpected command response while idle: %+v", res.Cmd)
		case protocol.ResultErr:
			log.Printf("serialworker: decode error while idle: %s", res.Err)
		}
	}
}

// handleResponseWait reads until a decoded event arrives for the
// outstanding request, replies, and returns to Connected. Signal frames
// decoded while waiting are still forwarded to the signal channel.
func (t *thread) handleResponseWait() {
	buf := make([]byte, 2048)
	n, err := t.port.Read(buf)
	if err != nil {
		reply(t.pending, response{err: sbserr.Serial("failed to read from serial: " + err.Error())})
		t.state = wsConnected
		return
	}
	if n == 0 {
		// read timeout elapsed with no data available
		return
	}

	t.decoder.AddData(buf[:n])

	for {
		res := t.decoder.Decode()
		switch res.Kind {
		case protocol.ResultNone:
			return
		case protocol.ResultSignalFrame:
			t.forwardSignalFrame(res.Signal)
		case protocol.ResultErr:
			reply(t.pending, response{err: sbserr.Decode(res.Err)})
			t.state = wsConnected
			return
		case protocol.ResultCmdFrame:
			t.completeResponseWait(res.Cmd)
			return
		}
	}
}

func (t *thread) completeResponseWait(frame protocol.DecodedFrame) {
	var wantKind protocol.DecodedFrameKind
	switch t.state {
	case wsListFrames:
		wantKind = protocol.FrameListFrames
	case wsGetFrameInfo:
		wantKind = protocol.FrameGetFrameInfo
	case wsEnableFrame:
		wantKind = protocol.FrameEnableFrame
	case wsDisableFrame:
		wantKind = protocol.FrameDisableFrame
	}

	if frame.Kind != wantKind {
		reply(t.pending, response{err: sbserr.WrongFrame("unexpected response frame kind")})
		t.state = wsConnected
		return
	}

	reply(t.pending, response{frames: frame.Frames, details: frame.Details})
	t.state = wsConnected
}

func (t *thread) forwardSignalFrame(rsf sbs.RawSignalFrame) {
	select {
	case t.signals <- rsf:
	default:
		log.Printf("serialworker: signal channel full, dropping frame %d", rsf.FrameID)
	}
}

func reply(cmd command, res response) {
	if cmd.response == nil {
		return
	}
	select {
	case cmd.response <- res:
	default:
	}
}

