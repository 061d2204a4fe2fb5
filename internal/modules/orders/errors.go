package orders

import "errors"

// Business-rule violations surfaced by the mutation engine. Handlers map these
// to client errors; anything else is a server error. Violations are permanent
// for the given input and must not be retried.
var (
	// ErrInsufficientSecurities - a SELL would exceed current holdings
	ErrInsufficientSecurities = errors.New("Insufficient Securities")

	// ErrInvalidOperation - an update or delete would retroactively make a
	// position negative
	ErrInvalidOperation = errors.New("Invalid Operation")

	// ErrOrderNotFound - the referenced order id does not exist
	ErrOrderNotFound = errors.New("order not found")
)
