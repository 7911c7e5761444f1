// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package errors defines the typed error taxonomy shared across agentbus:
// ring buffer, worker pool, record, and capability probe all classify
// failures into one of a small set of sentinel kinds so callers can branch
// on kind rather than parse messages.
package errors

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Sentinel error kinds, per the taxonomy in the agentbus design. Every
// constructor below wraps one of these with contextual detail via %w, so
// errors.Is(err, ErrInvalidArgument) (etc.) works on the wrapped value.
var (
	// ErrInvalidArgument: caller-supplied parameter violates a contract
	// (oversize payload, bad priority, bad target_count). Always surfaced.
	ErrInvalidArgument = errors.New("agentbus: invalid argument")

	// ErrFull is an alias of iox.ErrWouldBlock for write-side backpressure:
	// the ring buffer has no room. Surfaced; caller decides.
	ErrFull = iox.ErrWouldBlock

	// ErrEmpty is an alias of iox.ErrWouldBlock for read-side: no record
	// available. Normal control flow, not a failure.
	ErrEmpty = iox.ErrWouldBlock

	// ErrTooLarge: record exceeds the priority class's capacity. Surfaced;
	// never partially written.
	ErrTooLarge = errors.New("agentbus: record too large for class capacity")

	// ErrBufferTooSmall: consumer's output buffer cannot hold the record.
	// Surfaced; the record stays queued.
	ErrBufferTooSmall = errors.New("agentbus: output buffer too small")

	// ErrMalformed: a record failed magic/version/length/CRC validation.
	// Handled locally by readers (drop + counter); never propagated from
	// a successful Read.
	ErrMalformed = errors.New("agentbus: malformed record")

	// ErrResource: allocation/mmap/pinning failure. Surfaced only from
	// creation paths (rb_create, pool_start), never from hot paths.
	ErrResource = errors.New("agentbus: resource allocation failed")

	// ErrCallback: the user process callback reported failure (or
	// panicked). Handled locally, counted; logging is advisory.
	ErrCallback = errors.New("agentbus: process callback failed")
)

// IsWouldBlock reports whether err is Full or Empty (i.e. iox.ErrWouldBlock).
func IsWouldBlock(err error) bool { return iox.IsWouldBlock(err) }

// InvalidArgumentf builds a wrapped ErrInvalidArgument with detail.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

// TooLargef builds a wrapped ErrTooLarge with detail.
func TooLargef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTooLarge)...)
}

// BufferTooSmallf builds a wrapped ErrBufferTooSmall with detail.
func BufferTooSmallf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrBufferTooSmall)...)
}

// Malformedf builds a wrapped ErrMalformed with detail.
func Malformedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrMalformed)...)
}

// Resourcef builds a wrapped ErrResource with detail.
func Resourcef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrResource)...)
}

// Callbackf builds a wrapped ErrCallback with detail.
func Callbackf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrCallback)...)
}
