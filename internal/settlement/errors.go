package settlement

import "errors"

var (
	// ErrNothingToReverse is returned when a refund generation finds no
	// persisted order_completed items to negate.
	ErrNothingToReverse = errors.New("no completed settlement items to reverse")

	// ErrDuplicateGeneration is surfaced when a concurrent generation for the
	// same (order, reason) pair lost the race against the storage-layer
	// uniqueness constraint. The caller retries and receives the winner's
	// rows through the idempotent read path.
	ErrDuplicateGeneration = errors.New("settlement items already generated for this order and reason")

	// ErrInvalidStateTransition is returned for finalize on a non-open batch
	// or cancel on a finalized batch.
	ErrInvalidStateTransition = errors.New("invalid settlement batch state transition")

	// ErrUnsupportedReason is returned when generate is called with a reason
	// code it has no computation for.
	ErrUnsupportedReason = errors.New("unsupported settlement reason code")
)
