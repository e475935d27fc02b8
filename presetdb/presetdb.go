// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package presetdb retrieves stored capture configurations and run
// records from the acquisition database.
package presetdb // import "github.com/go-sigrok/lwla/presetdb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve capture presets and run
// records from the acquisition database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the acquisition database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("presetdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("presetdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("presetdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastPresetName returns the name of the most recently stored preset.
func (db *DB) LastPresetName(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM presets ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("presetdb: could not query last preset: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("presetdb: could not get last preset value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("presetdb: could not scan db for last preset: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("presetdb: context error while retrieving last preset: %w", err)
	}

	return name, nil
}

// Preset returns the stored capture configuration with the given name.
func (db *DB) Preset(ctx context.Context, name string) (Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var preset Preset
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT presets.* FROM presets WHERE presets.name=?",
		name,
	)
	if err != nil {
		return preset, fmt.Errorf("presetdb: could not run preset query: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		err = rows.Scan(
			&preset.ID, &preset.Name,
			&preset.Model, &preset.Samplerate,
			&preset.LimitSamples, &preset.LimitMsec,
			&preset.ChannelMask,
			&preset.TriggerMask, &preset.TriggerEdges, &preset.TriggerValues,
			&preset.ExtClock, &preset.ExtTrigger,
			&preset.RLE,
		)
		if err != nil {
			return preset, fmt.Errorf("presetdb: could not scan preset %q: %w", name, err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return preset, fmt.Errorf("presetdb: could not scan db for preset %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return preset, fmt.Errorf("presetdb: context error while retrieving preset %q: %w", name, err)
	}

	if n == 0 {
		return preset, fmt.Errorf("presetdb: no preset named %q", name)
	}

	return preset, nil
}

// Presets returns all stored capture configurations.
func (db *DB) Presets(ctx context.Context) ([]Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var presets []Preset
	rows, err := db.db.QueryContext(ctx, "SELECT * FROM presets")
	if err != nil {
		return presets, fmt.Errorf("presetdb: could not run presets query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var preset Preset
		err = rows.Scan(
			&preset.ID, &preset.Name,
			&preset.Model, &preset.Samplerate,
			&preset.LimitSamples, &preset.LimitMsec,
			&preset.ChannelMask,
			&preset.TriggerMask, &preset.TriggerEdges, &preset.TriggerValues,
			&preset.ExtClock, &preset.ExtTrigger,
			&preset.RLE,
		)
		if err != nil {
			return presets, fmt.Errorf("presetdb: could not scan presets: %w", err)
		}
		presets = append(presets, preset)
	}

	if err := rows.Err(); err != nil {
		return presets, fmt.Errorf("presetdb: could not scan db for presets: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return presets, fmt.Errorf("presetdb: context error while retrieving presets: %w", err)
	}

	return presets, nil
}

// Runs returns all recorded capture runs.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(ctx, "SELECT * FROM runs")
	if err != nil {
		return runs, fmt.Errorf("presetdb: could not run runs query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var run Run
		err = rows.Scan(&run.ID, &run.Number, &run.Preset, &run.File)
		if err != nil {
			return runs, fmt.Errorf("presetdb: could not scan runs: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("presetdb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("presetdb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}

// LastRunNumber returns the number of the most recent capture run.
func (db *DB) LastRunNumber(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var number uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT number FROM runs ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return number, fmt.Errorf("presetdb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&number)
		if err != nil {
			return number, fmt.Errorf("presetdb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return number, fmt.Errorf("presetdb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return number, fmt.Errorf("presetdb: context error while retrieving last run: %w", err)
	}

	return number, nil
}
