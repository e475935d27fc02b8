// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

// Device drives capture sessions on one logic analyzer.
type Device struct {
	msg  *log.Logger
	tr   transport.Transport
	mdl  model
	prof *wire.Profile
	sink Sink

	cfg config

	state           protoState
	cancelRequested bool
	transferError   bool
	err             error

	acq *session

	evts  chan *transport.Transfer
	ctl   chan struct{}
	donec chan struct{}
}

// New returns a device for the given model name, speaking through tr
// and emitting decoded samples to sink.
func New(tr transport.Transport, model string, sink Sink, opts ...Option) (*Device, error) {
	prof, err := wire.ProfileByName(model)
	if err != nil {
		return nil, fmt.Errorf("acq: could not create device: %w", err)
	}

	dev := &Device{
		msg:  log.New(os.Stdout, "acq: ", 0),
		tr:   tr,
		prof: prof,
		sink: sink,
		cfg:  newConfig(prof),
		evts: make(chan *transport.Transfer, 2),
	}
	dev.mdl = newModel(dev, prof)

	for _, opt := range opts {
		opt(&dev.cfg)
	}
	return dev, nil
}

// Profile returns the device model description.
func (dev *Device) Profile() *wire.Profile { return dev.prof }

// Start arms the device and launches the acquisition session. It
// returns once the capture is running; the session then advances on
// its own until a configured limit is hit or Stop is called.
func (dev *Device) Start() error {
	if dev.state != stIdle {
		return fmt.Errorf("acq: not in idle state, cannot start acquisition")
	}
	dev.cancelRequested = false
	dev.transferError = false
	dev.err = nil

	// Drop stale completions left over from a failed session.
drain:
	for {
		select {
		case <-dev.evts:
		default:
			break drain
		}
	}

	acq, err := dev.newSession()
	if err != nil {
		return err
	}
	dev.acq = acq

	err = dev.mdl.setup(dev)
	if err != nil {
		return fmt.Errorf("acq: could not set up device for acquisition: %w", err)
	}

	err = dev.sink.Header(dev.cfg.samplerate)
	if err != nil {
		return fmt.Errorf("acq: could not emit session header: %w", err)
	}

	dev.ctl = make(chan struct{}, 1)
	dev.donec = make(chan struct{})

	dev.submitRequest(stStartCapture)
	if dev.transferError {
		dev.state = stIdle
		return fmt.Errorf("acq: could not arm capture: %w", dev.err)
	}

	go dev.loop()
	return nil
}

// Stop requests the end of the running session and waits for it to
// wind down. Stopping an already finished session is not an error.
func (dev *Device) Stop() error {
	if dev.donec == nil {
		return fmt.Errorf("acq: no acquisition in progress")
	}

	const timeout = 10 * time.Second
	tck := time.NewTimer(timeout)
	defer tck.Stop()

	select {
	case dev.ctl <- struct{}{}:
	case <-dev.donec:
	}

	select {
	case <-dev.donec:
	case <-tck.C:
		return fmt.Errorf("acq: could not stop acquisition (timeout=%v)", timeout)
	}

	return dev.err
}

// Wait blocks until the running session ends on its own and returns
// its outcome.
func (dev *Device) Wait() error {
	if dev.donec == nil {
		return fmt.Errorf("acq: no acquisition in progress")
	}
	<-dev.donec
	return dev.err
}

// Err returns the error that ended the last session, if any.
func (dev *Device) Err() error {
	if dev.donec == nil {
		return nil
	}
	select {
	case <-dev.donec:
		return dev.err
	default:
		return nil
	}
}

// Close releases the underlying transport.
func (dev *Device) Close() error {
	return dev.tr.Close()
}

// completed is installed as the Done callback of both session
// transfers. It runs on a transport goroutine and only forwards the
// transfer to the event loop.
func (dev *Device) completed(xfer *transport.Transfer) {
	dev.evts <- xfer
}

// loop is the session event loop. It owns all session state; transfer
// completions, poll ticks and the stop request are handled strictly
// one at a time.
func (dev *Device) loop() {
	tick := time.NewTicker(dev.cfg.pollInterval)
	defer tick.Stop()

	for dev.state != stIdle {
		select {
		case xfer := <-dev.evts:
			dev.handle(xfer)
		case <-tick.C:
			dev.pollTick()
		case <-dev.ctl:
			dev.cancelRequested = true
			dev.pollTick()
		}
		if dev.transferError {
			dev.state = stIdle
		}
	}

	dev.msg.Printf("acquisition stopped")

	err := dev.sink.End()
	if err != nil && dev.err == nil {
		dev.err = fmt.Errorf("acq: could not emit session end: %w", err)
	}
	dev.acq = nil
	close(dev.donec)
}

// pollTick fires on the status poll interval. Waiting for the capture
// to fill is the only state without a transfer in flight, so this is
// where the periodic status request (or a pending stop) is issued.
func (dev *Device) pollTick() {
	if dev.transferError || dev.state != stStatusWait {
		return
	}
	if dev.cancelRequested {
		dev.submitRequest(stStopCapture)
	} else {
		dev.submitRequest(stStatusRequest)
	}
}

func (dev *Device) handle(xfer *transport.Transfer) {
	switch xfer {
	case dev.acq.out:
		dev.outCompleted()
	case dev.acq.in:
		dev.inCompleted()
	}
}

// fail records a fatal session error.
func (dev *Device) fail(err error) {
	if dev.err == nil {
		dev.err = err
	}
	dev.msg.Printf("%+v", err)
	dev.transferError = true
}

// submitRequest enters state and submits the corresponding request
// command to the device.
func (dev *Device) submitRequest(state protoState) {
	acq := dev.acq

	dev.state = state
	acq.out.Len = 0
	acq.regSeq = acq.regSeq[:0]
	acq.regPos = 0

	err := dev.mdl.prepareRequest(dev)
	if err != nil {
		dev.fail(err)
		return
	}

	if acq.regPos < len(acq.regSeq) {
		if state.expectsResponse() {
			dev.nextRegRead()
		} else {
			dev.nextRegWrite()
		}
	}
	dev.submitOut()
}

// queueReg appends a register access to the current sequence.
func (dev *Device) queueReg(reg uint16, val uint32) {
	dev.acq.regSeq = append(dev.acq.regSeq, regval{reg: reg, val: val})
}

func (dev *Device) nextRegWrite() {
	acq := dev.acq
	rv := acq.regSeq[acq.regPos]
	acq.out.Len = len(wire.AppendRegWrite(acq.out.Buf[:0], rv.reg, rv.val))
}

func (dev *Device) nextRegRead() {
	acq := dev.acq
	rv := acq.regSeq[acq.regPos]
	acq.out.Len = len(wire.AppendRegRead(acq.out.Buf[:0], rv.reg))
}

// outCompleted handles completion of the outbound transfer.
func (dev *Device) outCompleted() {
	acq := dev.acq

	if acq.out.Status != transport.StatusCompleted {
		dev.fail(fmt.Errorf("acq: transfer to device failed (state %v): %v: %w",
			dev.state, acq.out.Status, acq.out.Err))
		return
	}

	// If this was a read request, wait for the response.
	if dev.state.expectsResponse() {
		dev.state = dev.state.response()
		dev.submitIn()
		return
	}

	if acq.regPos < len(acq.regSeq) {
		acq.regPos++ // register write completed
	}
	// Repeat until all queued registers have been written.
	if acq.regPos < len(acq.regSeq) && !dev.cancelRequested {
		dev.nextRegWrite()
		dev.submitOut()
		return
	}

	switch dev.state {
	case stStartCapture:
		dev.msg.Printf("acquisition started")
		if !dev.cancelRequested {
			dev.state = stStatusWait
		} else {
			dev.submitRequest(stStopCapture)
		}
	case stStopCapture:
		if !dev.cancelRequested {
			dev.submitRequest(stLengthRequest)
		} else {
			dev.state = stIdle
		}
	case stReadPrepare:
		if acq.memNext < acq.memStop && !dev.cancelRequested {
			dev.submitRequest(stReadRequest)
		} else {
			dev.submitRequest(stReadEnd)
		}
	case stReadEnd:
		dev.state = stIdle
	default:
		dev.fail(fmt.Errorf("acq: unexpected device state %v", dev.state))
	}
}

// inCompleted handles completion of the inbound transfer.
func (dev *Device) inCompleted() {
	acq := dev.acq

	if acq.in.Status != transport.StatusCompleted {
		dev.fail(fmt.Errorf("acq: transfer from device failed (state %v): %v: %w",
			dev.state, acq.in.Status, acq.in.Err))
		return
	}
	if !dev.state.isResponse() {
		dev.fail(fmt.Errorf("acq: unexpected completion of input transfer (state %v)", dev.state))
		return
	}
	if dev.retryIn() {
		return
	}

	if acq.regPos < len(acq.regSeq) && !dev.cancelRequested {
		// Complete register read sequence.
		v, err := wire.RegValue(acq.in.Buf[:acq.in.Actual])
		if err != nil {
			dev.fail(fmt.Errorf("acq: could not decode register reply (state %v): %w", dev.state, err))
			return
		}
		acq.regSeq[acq.regPos].val = v
		// Repeat until all queued registers have been read.
		if acq.regPos++; acq.regPos < len(acq.regSeq) {
			dev.state = dev.state.request()
			dev.nextRegRead()
			dev.submitOut()
			return
		}
	}

	switch dev.state {
	case stStatusResponse:
		if dev.cancelRequested {
			dev.submitRequest(stStopCapture)
		} else {
			dev.statusResponse()
		}
	case stLengthResponse:
		if dev.cancelRequested {
			dev.submitRequest(stReadEnd)
		} else {
			dev.lengthResponse()
		}
	case stReadResponse:
		dev.readResponse()
	default:
		dev.fail(fmt.Errorf("acq: unexpected device state %v", dev.state))
	}
}

// statusResponse evaluates and acts on a capture status poll reply.
func (dev *Device) statusResponse() {
	acq := dev.acq
	oldStatus := acq.status

	err := dev.mdl.handleStatus(dev)
	if err != nil {
		dev.fail(err)
		return
	}
	dev.state = stStatusWait

	dev.msg.Printf("captured %d words, %d ms, status 0x%02x",
		acq.fill, acq.durationNow, acq.status)

	if ^oldStatus&acq.status&wire.StatusTriggered != 0 {
		dev.msg.Printf("capture triggered")
		err := dev.sink.Trigger()
		if err != nil {
			dev.fail(fmt.Errorf("acq: could not emit trigger marker: %w", err))
			return
		}
	}

	switch {
	case acq.durationNow >= acq.durationMax:
		dev.msg.Printf("time limit reached, stopping capture")
		dev.submitRequest(stStopCapture)
	case acq.status&wire.StatusTriggered == 0:
		// still waiting for the trigger
	case acq.status&wire.StatusMemAvail == 0:
		dev.msg.Printf("capture memory filled")
		dev.submitRequest(stLengthRequest)
	case acq.status&wire.StatusCapturing != 0:
		// sampling in progress
	}
}

// lengthResponse evaluates and acts on a capture length reply and
// resets the decode cursor for the readout phase.
func (dev *Device) lengthResponse() {
	acq := dev.acq

	err := dev.mdl.handleLength(dev)
	if err != nil {
		dev.fail(err)
		return
	}

	acq.samplesDone = 0
	acq.outIndex = 0
	acq.memDone = acq.memNext

	if acq.memNext >= acq.memStop {
		dev.submitRequest(stReadEnd)
		return
	}
	dev.msg.Printf("%d words in capture buffer", acq.memStop-acq.memNext)

	dev.submitRequest(stReadPrepare)
}

// readResponse decodes one capture memory read reply, flushing full
// sample packets along the way, and requests the next chunk if more
// capture memory remains.
func (dev *Device) readResponse() {
	acq := dev.acq

	endAddr := acq.memNext
	if acq.memStop < endAddr {
		endAddr = acq.memStop
	}
	acq.inIndex = 0

	// Repeatedly invoke the model decoder until all data received
	// in the transfer has been accounted for.
	for !dev.cancelRequested &&
		(dev.mdl.pending() > 0 || acq.memDone < endAddr) &&
		acq.samplesDone < acq.samplesMax {

		err := dev.mdl.handleRead(dev)
		if err != nil {
			dev.fail(err)
			return
		}
		if acq.outIndex*dev.prof.UnitSize >= len(acq.packet) {
			if !dev.flushPacket() {
				return
			}
		}
	}

	if !dev.cancelRequested &&
		acq.samplesDone < acq.samplesMax &&
		acq.memNext < acq.memStop {
		// Request the next chunk.
		dev.submitRequest(stReadRequest)
		return
	}

	// Flush the partially filled packet as it is the last one.
	if !dev.cancelRequested && acq.outIndex > 0 {
		if !dev.flushPacket() {
			return
		}
	}
	dev.submitRequest(stReadEnd)
}

// flushPacket emits the buffered sample units to the sink.
func (dev *Device) flushPacket() bool {
	acq := dev.acq
	if acq.outIndex == 0 {
		return true
	}
	err := dev.sink.LogicSamples(acq.packet[:acq.outIndex*dev.prof.UnitSize], dev.prof.UnitSize)
	if err != nil {
		dev.fail(fmt.Errorf("acq: could not emit sample packet: %w", err))
		return false
	}
	acq.outIndex = 0
	return true
}

// writeRegSync performs a single register write and waits for the
// outcome. Only used before the event loop runs.
func (dev *Device) writeRegSync(reg uint16, val uint32) error {
	acq := dev.acq
	acq.out.Len = len(wire.AppendRegWrite(acq.out.Buf[:0], reg, val))
	return dev.sendSync()
}

// sendSync submits the outbound transfer and waits for its
// completion. Only used before the event loop runs.
func (dev *Device) sendSync() error {
	acq := dev.acq
	err := dev.tr.SubmitOut(acq.out)
	if err != nil {
		return fmt.Errorf("acq: could not submit transfer: %w", err)
	}
	xfer := <-dev.evts
	if xfer != acq.out {
		return fmt.Errorf("acq: unexpected transfer completion")
	}
	if xfer.Status != transport.StatusCompleted {
		return fmt.Errorf("acq: transfer to device failed: %v: %w", xfer.Status, xfer.Err)
	}
	return nil
}
