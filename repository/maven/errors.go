// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package maven stores and retrieves maven2 layout repository content.
package maven

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default maven error class.
	Error = errs.Class("maven")
	// ErrMalformedPath is returned for paths that violate the artifact layout.
	ErrMalformedPath = errs.Class("malformed path")
	// ErrInvalidPath is returned for paths that may not be stored.
	ErrInvalidPath = errs.Class("invalid path")
	// ErrDescriptorParse is returned for unreadable descriptors.
	ErrDescriptorParse = errs.Class("descriptor parse")

	mon = monkit.Package()
)
