// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"github.com/zeebo/errs"
)

var (
	// Error is the default storage error class.
	Error = errs.Class("storage")
	// ErrWriteConflict is returned when a transaction read a value that was
	// changed before it committed. The operation may be retried.
	ErrWriteConflict = errs.Class("write conflict")
	// ErrPolicyViolation is returned when a write is not permitted.
	ErrPolicyViolation = errs.Class("policy violation")
	// ErrStorageUnavailable is returned when the blob or document store fails.
	ErrStorageUnavailable = errs.Class("storage unavailable")
	// ErrInvalidRequest is returned for invalid arguments.
	ErrInvalidRequest = errs.Class("invalid request")
	// ErrTxDone is returned when using a committed or rolled back transaction.
	ErrTxDone = errs.Class("transaction done")
)
