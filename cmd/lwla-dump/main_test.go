// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sigrok/lwla/internal/cformat"
)

func TestProcess(t *testing.T) {
	tmp := t.TempDir()

	for _, tc := range []struct {
		name string
		data cformat.Capture
		raw  []byte
		want string
		err  string
	}{
		{
			name: "simple-capture",
			data: cformat.Capture{
				Header: cformat.Header{
					Samplerate: 100000000,
					Channels:   34,
					UnitSize:   5,
				},
				Samples: []byte{
					0x01, 0x02, 0x03, 0x04, 0x00,
					0x11, 0x12, 0x13, 0x14, 0x01,
					0x21, 0x22, 0x23, 0x24, 0x02,
				},
				Triggers: []uint64{1},
			},
			want: `=== LWLA capture ===
Samplerate:    100000000
Channels:             34
Unit size:             5
Samples:               3
Triggers:              1
  sample[       0] 0004030201
  sample[       1] 0114131211
  sample[       2] 0224232221
  trigger @       1
`,
		},
		{
			name: "invalid-capture",
			raw:  []byte{0xb0, 0x42},
			err:  "could not decode capture",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name+".cap")
			f, err := os.Create(fname)
			if err != nil {
				t.Fatalf("could not create capture file: %+v", err)
			}
			defer f.Close()

			switch {
			case tc.err == "":
				err = cformat.NewEncoder(f).Encode(&tc.data)
				if err != nil {
					t.Fatalf("could not encode capture: %+v", err)
				}
			default:
				_, err = f.Write(tc.raw)
				if err != nil {
					t.Fatalf("could not write capture file: %+v", err)
				}
			}

			err = f.Close()
			if err != nil {
				t.Fatalf("could not close capture file: %+v", err)
			}

			out := new(strings.Builder)
			err = process(out, fname)
			switch {
			case err != nil && tc.err != "":
				if !strings.Contains(err.Error(), tc.err) {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v\n", err, tc.err)
				}
			case err != nil && tc.err == "":
				t.Fatalf("could not lwla-dump: %+v", err)
			case err == nil && tc.err == "":
				if got, want := out.String(), tc.want; got != want {
					t.Fatalf("invalid lwla-dump output:\ngot:\n%s\nwant:\n%s\n", got, want)
				}
			case err == nil && tc.err != "":
				t.Fatalf("expected an error: want=%v", tc.err)
			}
		})
	}
}
