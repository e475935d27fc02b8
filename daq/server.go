// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-sigrok/lwla/acq"
	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

// Server bridges a LWLA device into a TDAQ process. Capture data
// packets are published on the /logic output port.
type Server struct {
	model string

	openXport func() (transport.Transport, error)

	xport transport.Transport
	dev   *acq.Device
	sink  *chanSink

	cfg struct {
		rate    uint32
		samples uint32
		msec    uint32
	}
}

// New creates a TDAQ server for a LWLA device of the given model.
func New(model string) *Server {
	return &Server{
		model: model,
		openXport: func() (transport.Transport, error) {
			return transport.OpenFTDI(wire.USBVendorID, wire.USBProductID)
		},
	}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) == 0 {
		return nil
	}

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	srv.cfg.rate = dec.ReadU32()
	srv.cfg.samples = dec.ReadU32()
	srv.cfg.msec = dec.ReadU32()

	ctx.Msg.Infof("configured: rate=%d samples=%d msec=%d",
		srv.cfg.rate, srv.cfg.samples, srv.cfg.msec,
	)
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	devs, err := ListDevices()
	if err != nil {
		ctx.Msg.Errorf("could not build list of connected LWLA devices: %+v", err)
		return fmt.Errorf("could not build list of connected LWLA devices: %w", err)
	}
	for _, dev := range devs {
		ctx.Msg.Infof("found LWLA device %q", dev.Serial)
	}

	xport, err := srv.openXport()
	if err != nil {
		ctx.Msg.Errorf("could not open LWLA device: %+v", err)
		return fmt.Errorf("could not open LWLA device: %w", err)
	}
	srv.xport = xport
	srv.sink = newChanSink()

	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if srv.dev != nil {
		_ = srv.dev.Stop()
		_ = srv.dev.Wait()
		srv.dev.Close()
		srv.dev = nil
	}
	srv.sink = newChanSink()
	srv.cfg.rate = 0
	srv.cfg.samples = 0
	srv.cfg.msec = 0
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.dev != nil {
		return fmt.Errorf("capture already in progress")
	}

	var opts []acq.Option
	if srv.cfg.rate != 0 {
		opts = append(opts, acq.WithSamplerate(uint64(srv.cfg.rate)))
	}
	if srv.cfg.samples != 0 {
		opts = append(opts, acq.WithLimitSamples(uint64(srv.cfg.samples)))
	}
	if srv.cfg.msec != 0 {
		opts = append(opts, acq.WithLimitDuration(time.Duration(srv.cfg.msec)*time.Millisecond))
	}

	dev, err := acq.New(srv.xport, srv.model, srv.sink, opts...)
	if err != nil {
		return fmt.Errorf("could not set up capture: %w", err)
	}

	err = dev.Start()
	if err != nil {
		return fmt.Errorf("could not start capture: %w", err)
	}
	srv.dev = dev

	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := srv.sink.count()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	if srv.dev == nil {
		return nil
	}

	err := srv.dev.Stop()
	if err != nil {
		return fmt.Errorf("could not stop capture: %w", err)
	}
	err = srv.dev.Wait()
	if err != nil {
		ctx.Msg.Warnf("capture ended with error: %+v", err)
	}
	srv.dev.Close()
	srv.dev = nil

	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if srv.dev != nil {
		_ = srv.dev.Stop()
		_ = srv.dev.Wait()
		srv.dev.Close()
		srv.dev = nil
	}
	if srv.xport != nil {
		err := srv.xport.Close()
		srv.xport = nil
		if err != nil {
			return fmt.Errorf("could not close LWLA device: %w", err)
		}
	}
	return nil
}

// Logic streams capture data packets to the /logic output port.
func (srv *Server) Logic(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.sink.data:
		dst.Body = data
	}
	return nil
}

// Run keeps the server alive until the TDAQ context is done.
func (srv *Server) Run(ctx tdaq.Context) error {
	<-ctx.Ctx.Done()
	return nil
}

// chanSink forwards capture packets to a channel, dropping packets
// when no consumer keeps up.
type chanSink struct {
	data chan []byte

	mu sync.Mutex
	n  int
}

func newChanSink() *chanSink {
	return &chanSink{data: make(chan []byte, 1024)}
}

func (sink *chanSink) Header(samplerate uint64) error { return nil }

func (sink *chanSink) LogicSamples(data []byte, unitSize int) error {
	raw := make([]byte, len(data))
	copy(raw, data)
	select {
	case sink.data <- raw:
		sink.mu.Lock()
		sink.n++
		sink.mu.Unlock()
	default:
	}
	return nil
}

func (sink *chanSink) Trigger() error { return nil }

func (sink *chanSink) End() error { return nil }

func (sink *chanSink) count() int {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.n
}

var _ acq.Sink = (*chanSink)(nil)
