package orders

import "errors"

// Domain errors surfaced to the API layer as structured results. They are
// returned, never panicked across the service boundary.
var (
	// ErrOrderNotFound covers both a missing order and an order owned by
	// another user; callers cannot distinguish the two.
	ErrOrderNotFound = errors.New("order not found or you do not have permission to cancel this order")

	// ErrOrderNotCancellable is returned when the order process has already
	// left the pending status.
	ErrOrderNotCancellable = errors.New("this order cannot be canceled because it is either completed or already canceled")
)
