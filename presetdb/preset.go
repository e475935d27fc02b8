// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package presetdb

// Preset is a named, stored capture configuration.
type Preset struct {
	ID   int32  `json:"identifier"`
	Name string `json:"name"`

	Model      string `json:"model"`
	Samplerate uint64 `json:"samplerate"`

	LimitSamples uint64 `json:"limit_samples"`
	LimitMsec    uint64 `json:"limit_msec"`

	ChannelMask   uint64 `json:"channel_mask"`
	TriggerMask   uint64 `json:"trigger_mask"`
	TriggerEdges  uint64 `json:"trigger_edges"`
	TriggerValues uint64 `json:"trigger_values"`

	ExtClock   string `json:"ext_clock"`   // "", "rising" or "falling"
	ExtTrigger string `json:"ext_trigger"` // "", "rising" or "falling"
	RLE        bool   `json:"rle"`
}

// Run is one recorded capture run.
type Run struct {
	ID     uint64 `json:"identifier"`
	Number uint32 `json:"number"`
	Preset string `json:"preset"`
	File   string `json:"file"`
}
