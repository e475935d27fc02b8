// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lwla-sql inspects the capture preset database.
package main // import "github.com/go-sigrok/lwla/cmd/lwla-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-sigrok/lwla/presetdb"
)

const (
	dbname = "lwlasrv"
)

func main() {
	log.SetPrefix("lwla-sql: ")
	log.SetFlags(0)

	var (
		preset = flag.String("preset", "", "preset to inspect")
	)

	flag.Parse()

	log.Printf("preset: %q", *preset)

	db, err := presetdb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open LWLA db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, *preset)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *presetdb.DB, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if name == "" {
		v, err := db.LastPresetName(ctx)
		if err != nil {
			return fmt.Errorf("could not get last preset name: %w", err)
		}
		name = v
		log.Printf("last preset: %q", name)
	}

	preset, err := db.Preset(ctx, name)
	if err != nil {
		return fmt.Errorf("could not get preset %q: %w", name, err)
	}
	log.Printf("model:      %s", preset.Model)
	log.Printf("samplerate: %d", preset.Samplerate)
	log.Printf("samples:    %d", preset.LimitSamples)
	log.Printf("msec:       %d", preset.LimitMsec)
	log.Printf("channels:   0x%x", preset.ChannelMask)
	log.Printf("trigger:    mask=0x%x edges=0x%x values=0x%x",
		preset.TriggerMask, preset.TriggerEdges, preset.TriggerValues,
	)

	runs, err := db.Runs(ctx)
	if err != nil {
		return fmt.Errorf("could not retrieve runs: %w", err)
	}
	log.Printf("runs: %d", len(runs))
	for i, run := range runs {
		log.Printf("row[%d]: %#v", i, run)
	}

	number, err := db.LastRunNumber(ctx)
	if err != nil {
		return fmt.Errorf("could not get last run number: %w", err)
	}
	log.Printf("last run: %d", number)

	return nil
}
