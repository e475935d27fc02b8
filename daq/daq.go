// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq exposes a LWLA logic analyzer as a TDAQ data source.
package daq // import "github.com/go-sigrok/lwla/daq"

import (
	"github.com/ziutek/ftdi"

	"github.com/go-sigrok/lwla/wire"
)

// DeviceInfo describes one connected LWLA device.
type DeviceInfo struct {
	VendorID uint16
	ProdID   uint16
	Serial   string
}

func ftdiListDevices(vid, pid uint16) ([]DeviceInfo, error) {
	lst, err := ftdi.FindAll(int(vid), int(pid))
	if err != nil {
		return nil, err
	}

	var devs []DeviceInfo
	for _, dev := range lst {
		devs = append(devs, DeviceInfo{
			VendorID: vid,
			ProdID:   pid,
			Serial:   dev.Serial,
		})
		dev.Close()
	}

	return devs, nil
}

// ListDevices returns the connected LWLA devices.
func ListDevices() ([]DeviceInfo, error) {
	return ftdiListDevices(wire.USBVendorID, wire.USBProductID)
}
