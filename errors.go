package corosched

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Schedule when the timer queue is at
	// capacity. It surfaces synchronously to the caller, per spec.
	ErrQueueFull = errors.New("corosched: timer queue is full")

	// ErrRaceNoChildren is returned immediately (the parent never
	// suspends) when Race is awaited with zero children.
	ErrRaceNoChildren = errors.New("corosched: race has no children")

	// ErrSchedulerClosed is returned by Schedule once Clear has been
	// called on the scheduler, or after Run has returned.
	ErrSchedulerClosed = errors.New("corosched: scheduler is closed")

	// ErrTaskNotResumable is logged (step has no return value) when a step
	// is attempted on a task that has already reached a terminal state.
	ErrTaskNotResumable = errors.New("corosched: task is not resumable")
)

// CancellationError is the sentinel failure value delivered to a task's
// finalizer when it was cancelled via Close, rather than returning or
// failing on its own. It is a distinct type (not a sentinel var) so
// errors.As can recover the cancelled task's identity from it.
type CancellationError struct {
	TaskID uint64
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("corosched: task %d cancelled", e.TaskID)
}

// IsCancellation reports whether err is (or wraps) a CancellationError.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}
