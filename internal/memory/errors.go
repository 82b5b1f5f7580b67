package memory

import "errors"

// Sentinel errors shared across the engine. Callers match with errors.Is;
// layers and the orchestrator wrap these with %w to add detail.
var (
	// ErrTimeout indicates a layer or retrieval deadline expired.
	ErrTimeout = errors.New("context retrieval timed out")

	// ErrLayerUnavailable indicates a layer failed for a non-deadline
	// reason. The orchestrator degrades past it; the API surfaces it only
	// for direct layer operations.
	ErrLayerUnavailable = errors.New("context layer unavailable")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidArgument indicates the caller supplied an unusable input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAggregateWriteFailure indicates every layer write in an outcome
	// fan-out failed. Partial failure is not an error.
	ErrAggregateWriteFailure = errors.New("all outcome writes failed")
)
