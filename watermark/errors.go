package watermark

import "errors"

// Engine error taxonomy. Per-frame degradations (band skips, degenerate
// masking frames) are not errors: they are recovered locally and accumulated
// in the AppliedParams record so callers can assert on what was actually
// embedded.
var (
	// ErrInputTooShort is returned when the signal is shorter than one
	// analysis frame. Fatal for the call; nothing is embedded.
	ErrInputTooShort = errors.New("watermark: input shorter than one analysis frame")

	// ErrCancelled is returned when the caller's context expires before the
	// full output buffer is ready. No partial result is ever returned.
	ErrCancelled = errors.New("watermark: operation cancelled")

	// ErrEmptySignal is returned for a signal with zero channels or a zero
	// sample rate, which cannot be framed at all.
	ErrEmptySignal = errors.New("watermark: empty or malformed signal")
)
