package block

import "errors"

// Validation errors for inbound chunks (§4.I).
var (
	ErrTooShort        = errors.New("block: chunk shorter than header")
	ErrPartNumZero     = errors.New("block: part number must be >= 1")
	ErrPartNumTooLarge = errors.New("block: part number exceeds total parts")
	ErrTooManyParts    = errors.New("block: total parts exceeds configured maximum")
	ErrChunkTooLarge   = errors.New("block: chunk data exceeds configured payload size")
	ErrBudgetExceeded  = errors.New("block: reassembly would exceed the memory budget")
)

// ErrBadNack reports a NACK line that did not match the expected syntax.
var ErrBadNack = errors.New("block: malformed NACK")
