package domain

import (
	"errors"
	"fmt"
)

// ErrAssumeFailure signals that the current execution path violates a modeling assumption.
// Drivers prune the path; it is never reported as a program defect.
var ErrAssumeFailure = errors.New("assume failure")

// ErrMachineNotFound is returned when a machine ID is unknown to the driver.
var ErrMachineNotFound = errors.New("machine not found")

// ErrCheckpointNotFound is returned when a checkpoint ID cannot be found in the store.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// AssumeFailureError reports which bounded event overflowed.
// errors.Is(err, ErrAssumeFailure) holds for it.
type AssumeFailureError struct {
	Event string
	Max   int
}

func (e *AssumeFailureError) Error() string {
	return fmt.Sprintf("assume failure: event %s exceeds max instances of %d", e.Event, e.Max)
}

func (e *AssumeFailureError) Is(target error) bool {
	return target == ErrAssumeFailure
}

// MaxInstancesExceededError is fatal to the current run.
type MaxInstancesExceededError struct {
	Event string
	Max   int
}

func (e *MaxInstancesExceededError) Error() string {
	return fmt.Sprintf("attempting to enqueue event %s more than max instances of %d", e.Event, e.Max)
}

// UnhandledEventError is returned when no active state handles, defers or inherits an event.
type UnhandledEventError struct {
	Machine MachineID
	State   StateID
	Event   string
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("machine %s: event %s unhandled in state %s", e.Machine, e.Event, e.State)
}
