// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert LWLA captures to/from LCIO.
package xcnv // import "github.com/go-sigrok/lwla/internal/xcnv"
