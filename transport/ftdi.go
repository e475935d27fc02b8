// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ziutek/ftdi"
)

type ftdiDevice interface {
	Reset() error

	SetFlowControl(flowctrl ftdi.FlowCtrl) error
	SetLatencyTimer(lt int) error
	SetWriteChunkSize(cs int) error
	SetReadChunkSize(cs int) error
	PurgeBuffers() error

	io.Writer
	io.Reader
	io.Closer
}

var (
	ftdiOpen = ftdiOpenImpl
)

func ftdiOpenImpl(vid, pid uint16) (ftdiDevice, error) {
	dev, err := ftdi.OpenFirst(int(vid), int(pid), ftdi.ChannelAny)
	return dev, err
}

// FTDI adapts an FTDI-bridged device link to the Transport contract.
type FTDI struct {
	vid uint16
	pid uint16
	ft  ftdiDevice
}

// OpenFTDI opens the first FTDI device matching vid/pid and prepares
// it for bulk transfers.
func OpenFTDI(vid, pid uint16) (*FTDI, error) {
	ft, err := ftdiOpen(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("transport: could not open FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}

	dev := &FTDI{vid: vid, pid: pid, ft: ft}
	err = dev.init()
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf("transport: could not initialize FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}

	return dev, nil
}

func (dev *FTDI) init() error {
	var err error

	err = dev.ft.Reset()
	if err != nil {
		return fmt.Errorf("could not reset USB: %w", err)
	}

	err = dev.ft.SetFlowControl(ftdi.FlowCtrlDisable)
	if err != nil {
		return fmt.Errorf("could not disable flow control: %w", err)
	}

	err = dev.ft.SetLatencyTimer(2)
	if err != nil {
		return fmt.Errorf("could not set latency timer to 2: %w", err)
	}

	err = dev.ft.SetWriteChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set write chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.SetReadChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set read chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("could not purge USB buffers: %w", err)
	}

	return err
}

// SubmitOut sends xfer.Buf[:xfer.Len] to the device command pipe.
func (dev *FTDI) SubmitOut(xfer *Transfer) error {
	go func() {
		n, err := dev.ft.Write(xfer.Buf[:xfer.Len])
		if err == nil && n != xfer.Len {
			err = io.ErrShortWrite
		}
		xfer.Status, xfer.Err = classify(err)
		xfer.Done(xfer)
	}()
	return nil
}

// SubmitIn reads the next device reply into xfer.Buf. A single read
// is issued: a device with no pending reply yields an empty
// completion, which the caller may resubmit.
func (dev *FTDI) SubmitIn(xfer *Transfer) error {
	go func() {
		n, err := dev.ft.Read(xfer.Buf)
		if errors.Is(err, io.EOF) && n == 0 {
			err = nil // empty read, not a disconnect
		}
		xfer.Actual = n
		xfer.Status, xfer.Err = classify(err)
		xfer.Done(xfer)
	}()
	return nil
}

// LoadConfig streams an opaque configuration blob (an FPGA bitstream)
// to the device.
func (dev *FTDI) LoadConfig(r io.Reader) error {
	_, err := io.Copy(dev.ft, r)
	if err != nil {
		return fmt.Errorf("transport: could not load device configuration: %w", err)
	}
	err = dev.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("transport: could not purge USB buffers: %w", err)
	}
	return nil
}

func (dev *FTDI) Close() error {
	return dev.ft.Close()
}

func classify(err error) (Status, error) {
	switch {
	case err == nil:
		return StatusCompleted, nil
	case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
		return StatusGone, err
	case errors.Is(err, os.ErrDeadlineExceeded):
		return StatusTimedOut, err
	default:
		return StatusError, err
	}
}
