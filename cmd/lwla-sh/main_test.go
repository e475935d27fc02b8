// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net"
	"reflect"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fields []string
		want   map[string]interface{}
		err    string
	}{
		{
			name:   "empty",
			fields: nil,
			want:   nil,
		},
		{
			name:   "mixed",
			fields: []string{"samplerate=100000000", "ext_clock=rising", "rle=true", "channel_mask=0x3"},
			want: map[string]interface{}{
				"samplerate":   uint64(100000000),
				"ext_clock":    "rising",
				"rle":          true,
				"channel_mask": uint64(3),
			},
		},
		{
			name:   "not-a-pair",
			fields: []string{"samplerate"},
			err:    "arguments must be key=value pairs",
		},
		{
			name:   "empty-value",
			fields: []string{"samplerate="},
			err:    "arguments must be key=value pairs",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgs(tc.fields)
			switch {
			case err != nil && tc.err != "":
				if !strings.Contains(err.Error(), tc.err) {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.err)
				}
			case err != nil && tc.err == "":
				t.Fatalf("could not parse args: %+v", err)
			case err == nil && tc.err != "":
				t.Fatalf("expected an error: want=%v", tc.err)
			case err == nil && tc.err == "":
				if !reflect.DeepEqual(got, tc.want) {
					t.Fatalf("invalid args:\ngot= %#v\nwant=%#v", got, tc.want)
				}
			}
		})
	}
}

func TestExec(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not create fake service: %+v", err)
	}
	defer lis.Close()

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			t.Errorf("could not accept conn: %+v", err)
			return
		}
		defer conn.Close()

		dec := json.NewDecoder(conn)
		enc := json.NewEncoder(conn)
		for {
			var req struct {
				Name string           `json:"name"`
				Args *json.RawMessage `json:"args"`
			}
			err := dec.Decode(&req)
			if err != nil {
				return
			}
			switch req.Name {
			case "configure", "start", "stop", "quit":
				_ = enc.Encode(map[string]string{"msg": "ok"})
			default:
				_ = enc.Encode(map[string]string{"msg": "unknown command"})
			}
		}
	}()

	conn, err := net.Dial("tcp", lis.Addr().String())
	if err != nil {
		t.Fatalf("could not dial fake service: %+v", err)
	}
	defer conn.Close()

	cli := &client{conn: conn}

	for _, cmd := range []string{
		"configure samplerate=100000000 limit_samples=8",
		"start run=7",
		"stop",
		"quit",
	} {
		msg, err := cli.exec(cmd)
		if err != nil {
			t.Fatalf("could not run %q: %+v", cmd, err)
		}
		if msg != "ok" {
			t.Fatalf("invalid reply for %q: got=%q, want=%q", cmd, msg, "ok")
		}
	}

	if _, err := cli.exec("stop and catch fire"); err == nil {
		t.Fatalf("expected an error for a malformed stop command")
	}

	if msg, err := cli.exec("help"); err != nil || !strings.Contains(msg, "commands:") {
		t.Fatalf("invalid help: msg=%q, err=%+v", msg, err)
	}

	if _, err := cli.exec("frobnicate"); err == nil {
		t.Fatalf("expected an error for an unknown command")
	}
}
