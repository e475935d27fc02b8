// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"time"

	"github.com/go-sigrok/lwla/wire"
)

// ClockSource selects the sampling clock of the device.
type ClockSource uint8

const (
	ClockInternal ClockSource = iota
	ClockExternal
)

// TriggerSource selects what arms the capture trigger.
type TriggerSource uint8

const (
	TriggerChannels TriggerSource = iota // logic channel trigger masks
	TriggerExtTRG                        // dedicated TRG input pin
)

// Edge selects a signal edge for external clock and trigger inputs.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
)

type config struct {
	samplerate uint64

	limitSamples uint64
	limitMsec    uint64
	hasSamples   bool
	hasMsec      bool

	channelMask     uint64
	triggerMask     uint64
	triggerEdgeMask uint64
	triggerValues   uint64

	clockSource   ClockSource
	clockEdge     Edge
	triggerSource TriggerSource
	triggerSlope  Edge

	rle bool // timing-state compression on the 16-channel models

	pollInterval time.Duration
	timeout      time.Duration
}

func newConfig(prof *wire.Profile) config {
	return config{
		samplerate:   prof.Samplerates[0],
		channelMask:  1<<uint(prof.Channels) - 1,
		pollInterval: 100 * time.Millisecond,
		timeout:      3 * time.Second,
	}
}

// Option configures an acquisition device.
type Option func(*config)

// WithSamplerate selects the samplerate in samples per second. The
// rate must be an exact entry of the model's samplerate table.
func WithSamplerate(rate uint64) Option {
	return func(cfg *config) {
		cfg.samplerate = rate
	}
}

// WithLimitSamples bounds the capture to n decoded samples.
func WithLimitSamples(n uint64) Option {
	return func(cfg *config) {
		cfg.limitSamples = n
		cfg.hasSamples = true
	}
}

// WithLimitDuration bounds the capture duration. The device counts
// capture time in milliseconds; finer resolutions are truncated.
func WithLimitDuration(d time.Duration) Option {
	return func(cfg *config) {
		cfg.limitMsec = uint64(d / time.Millisecond)
		cfg.hasMsec = true
	}
}

// WithChannelMask enables only the given set of channels.
func WithChannelMask(mask uint64) Option {
	return func(cfg *config) {
		cfg.channelMask = mask
	}
}

// WithTrigger sets the per-channel trigger configuration: mask
// selects the participating channels, edges selects edge triggering
// over level triggering per channel, and values holds the level or
// edge polarity per channel.
func WithTrigger(mask, edges, values uint64) Option {
	return func(cfg *config) {
		cfg.triggerMask = mask
		cfg.triggerEdgeMask = edges
		cfg.triggerValues = values
	}
}

// WithExternalClock samples on the given edge of the external clock
// input instead of the internal clock.
func WithExternalClock(edge Edge) Option {
	return func(cfg *config) {
		cfg.clockSource = ClockExternal
		cfg.clockEdge = edge
	}
}

// WithExternalTrigger arms the capture on the given slope of the
// dedicated TRG input instead of the channel trigger masks.
func WithExternalTrigger(slope Edge) Option {
	return func(cfg *config) {
		cfg.triggerSource = TriggerExtTRG
		cfg.triggerSlope = slope
	}
}

// WithRLE enables timing-state compression on models that support it.
func WithRLE(enabled bool) Option {
	return func(cfg *config) {
		cfg.rle = enabled
	}
}

// WithPollInterval sets the capture status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.pollInterval = d
	}
}

// WithTimeout sets the per-transfer timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}
