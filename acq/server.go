// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sigrok/lwla/internal/cformat"
	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

// server drives capture sessions on behalf of remote clients. One
// client connection is served at a time; each capture run is written
// to its own container file in the output directory.
type server struct {
	ctl net.Listener

	msg   *log.Logger
	model string
	odir  string

	newDevice func(model string, sink Sink, opts ...Option) (*Device, error)

	opts []Option
	dev  *Device
	out  *os.File
}

// Serve listens on addr and controls capture sessions on a device of
// the given model, writing capture files to odir.
func Serve(addr, model, odir string, opts ...Option) error {
	srv, err := newServer(addr, model, odir, opts...)
	if err != nil {
		return fmt.Errorf("acq: could not create capture server: %w", err)
	}
	return srv.serve()
}

func newServer(addr, model, odir string, opts ...Option) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("acq: could not listen on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,

		msg:   log.New(os.Stdout, "lwla-svc: ", 0),
		model: model,
		odir:  odir,

		newDevice: func(model string, sink Sink, opts ...Option) (*Device, error) {
			tr, err := transport.OpenFTDI(wire.USBVendorID, wire.USBProductID)
			if err != nil {
				return nil, err
			}
			dev, err := New(tr, model, sink, opts...)
			if err != nil {
				tr.Close()
				return nil, err
			}
			return dev, nil
		},
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("acq: could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not serve capture session: %+v", err)
			continue
		}
	}
}

// configArgs is the payload of the "configure" command.
type configArgs struct {
	Samplerate   uint64 `json:"samplerate,omitempty"`
	LimitSamples uint64 `json:"limit_samples,omitempty"`
	LimitMsec    uint64 `json:"limit_msec,omitempty"`

	ChannelMask *uint64 `json:"channel_mask,omitempty"`

	TriggerMask   uint64 `json:"trigger_mask,omitempty"`
	TriggerEdges  uint64 `json:"trigger_edges,omitempty"`
	TriggerValues uint64 `json:"trigger_values,omitempty"`

	ExtClock string `json:"ext_clock,omitempty"`   // "rising" or "falling"
	ExtTrg   string `json:"ext_trigger,omitempty"` // "rising" or "falling"
	RLE      bool   `json:"rle,omitempty"`
}

// startArgs is the payload of the "start" command.
type startArgs struct {
	Run uint32 `json:"run"`
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())
	defer srv.shutdown()

loop:
	for {
		var req struct {
			Name string           `json:"name"`
			Args *json.RawMessage `json:"args"`
		}

		err := json.NewDecoder(conn).Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, err)
			continue
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		switch strings.ToLower(req.Name) {
		case "configure":
			var args configArgs
			if req.Args != nil {
				err = json.Unmarshal(*req.Args, &args)
			}
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
				srv.reply(conn, err)
				continue
			}

			srv.opts, err = options(args)
			if err != nil {
				srv.msg.Printf("could not configure capture: %+v", err)
			}
			srv.reply(conn, err)

		case "start":
			var args startArgs
			if req.Args != nil {
				err = json.Unmarshal(*req.Args, &args)
			}
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
				srv.reply(conn, err)
				continue
			}

			err = srv.start(args.Run)
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not start capture run %d: %+v", args.Run, err)
				continue
			}

		case "stop":
			err = srv.stop()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not stop capture: %+v", err)
				continue
			}

		case "quit":
			srv.reply(conn, nil)
			break loop

		default:
			srv.msg.Printf("unknown command name=%q", req.Name)
			err = fmt.Errorf("unknown command %q", req.Name)
			srv.reply(conn, err)
			continue
		}
	}

	return nil
}

// options translates a configure request into device options.
func options(args configArgs) ([]Option, error) {
	var opts []Option
	if args.Samplerate != 0 {
		opts = append(opts, WithSamplerate(args.Samplerate))
	}
	if args.LimitSamples != 0 {
		opts = append(opts, WithLimitSamples(args.LimitSamples))
	}
	if args.LimitMsec != 0 {
		opts = append(opts, WithLimitDuration(time.Duration(args.LimitMsec)*time.Millisecond))
	}
	if args.ChannelMask != nil {
		opts = append(opts, WithChannelMask(*args.ChannelMask))
	}
	if args.TriggerMask != 0 || args.TriggerEdges != 0 || args.TriggerValues != 0 {
		opts = append(opts, WithTrigger(args.TriggerMask, args.TriggerEdges, args.TriggerValues))
	}
	if args.ExtClock != "" {
		edge, err := edgeOf(args.ExtClock)
		if err != nil {
			return nil, fmt.Errorf("acq: invalid external clock edge: %w", err)
		}
		opts = append(opts, WithExternalClock(edge))
	}
	if args.ExtTrg != "" {
		slope, err := edgeOf(args.ExtTrg)
		if err != nil {
			return nil, fmt.Errorf("acq: invalid external trigger slope: %w", err)
		}
		opts = append(opts, WithExternalTrigger(slope))
	}
	if args.RLE {
		opts = append(opts, WithRLE(true))
	}
	return opts, nil
}

func edgeOf(name string) (Edge, error) {
	switch strings.ToLower(name) {
	case "rising":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	}
	return 0, fmt.Errorf("unknown edge %q", name)
}

// start opens the capture file for the given run and launches a new
// capture session on a freshly opened device.
func (srv *server) start(run uint32) error {
	if srv.dev != nil {
		return fmt.Errorf("acq: capture already in progress")
	}

	fname := filepath.Join(srv.odir, fmt.Sprintf("lwla_run%06d.cap", run))
	out, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("acq: could not create capture file: %w", err)
	}

	prof, err := wire.ProfileByName(srv.model)
	if err != nil {
		out.Close()
		return err
	}
	sink := cformat.NewSink(out, prof.Channels, prof.UnitSize)

	dev, err := srv.newDevice(srv.model, sink, srv.opts...)
	if err != nil {
		out.Close()
		return fmt.Errorf("acq: could not open device: %w", err)
	}

	err = dev.Start()
	if err != nil {
		dev.Close()
		out.Close()
		return err
	}

	srv.dev = dev
	srv.out = out
	srv.msg.Printf("capture run %d started (file=%s)", run, fname)
	return nil
}

// stop ends the running capture session and closes the capture file.
func (srv *server) stop() error {
	if srv.dev == nil {
		return fmt.Errorf("acq: no capture in progress")
	}

	err := srv.dev.Stop()
	srv.shutdown()
	return err
}

// shutdown releases the device and capture file, if any.
func (srv *server) shutdown() {
	if srv.dev != nil {
		_ = srv.dev.Stop()
		_ = srv.dev.Close()
		srv.dev = nil
	}
	if srv.out != nil {
		_ = srv.out.Close()
		srv.out = nil
	}
}

func (srv *server) reply(conn net.Conn, err error) {
	rep := struct {
		Msg string `json:"msg"`
	}{"ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	srv.shutdown()
	_ = srv.ctl.Close()
}
