// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import "fmt"

// maxEmptyRetries bounds the number of consecutive empty inbound
// completions that are retried in place. The device occasionally
// needs another poll before a reply is ready; a reply that still has
// not arrived after this many attempts means the link is dead.
const maxEmptyRetries = 3

// submitOut submits the session's outbound transfer. Submission
// failures are fatal for the session.
func (dev *Device) submitOut() {
	err := dev.tr.SubmitOut(dev.acq.out)
	if err != nil {
		dev.fail(fmt.Errorf("acq: could not submit outbound transfer (state %v): %w", dev.state, err))
	}
}

// submitIn submits the session's inbound transfer.
func (dev *Device) submitIn() {
	acq := dev.acq
	acq.in.Actual = 0
	err := dev.tr.SubmitIn(acq.in)
	if err != nil {
		dev.fail(fmt.Errorf("acq: could not submit inbound transfer (state %v): %w", dev.state, err))
	}
}

// retryIn handles an empty inbound completion: the transfer is
// resubmitted unchanged up to maxEmptyRetries times in a row, after
// which the session fails. It reports whether the completion was
// consumed.
func (dev *Device) retryIn() bool {
	acq := dev.acq
	if acq.in.Actual > 0 {
		acq.retries = 0
		return false
	}
	acq.retries++
	if acq.retries > maxEmptyRetries {
		dev.fail(fmt.Errorf("acq: no reply from device after %d attempts (state %v)",
			acq.retries, dev.state))
		return true
	}
	dev.submitIn()
	return true
}
