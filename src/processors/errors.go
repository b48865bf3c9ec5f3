package processors

import "errors"

// Engine errors. All are terminal for the current calculation run: a run either
// fully succeeds or fully fails, never returning partial results.
var (
	ErrInvalidSequence     = errors.New("invalid transaction sequence")
	ErrInsufficientBalance = errors.New("insufficient balance for withdrawal")
	ErrMalformedAmount     = errors.New("malformed amount")
)
