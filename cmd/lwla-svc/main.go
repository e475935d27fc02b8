// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lwla-svc exposes a LWLA device as a JSON-over-TCP capture service.
package main // import "github.com/go-sigrok/lwla/cmd/lwla-svc"

import (
	"flag"
	"log"

	"github.com/go-sigrok/lwla/acq"
)

func main() {
	var (
		addr  = flag.String("addr", ":9999", "lwla-svc [addr]:port")
		model = flag.String("model", "LWLA1034", "device model")
		odir  = flag.String("o", "/var/run/lwla", "output dir")
	)

	log.SetPrefix("lwla-svc: ")
	log.SetFlags(0)

	flag.Parse()

	err := acq.Serve(*addr, *model, *odir)
	if err != nil {
		log.Fatalf("could not create lwla-svc service: %+v", err)
	}
}
