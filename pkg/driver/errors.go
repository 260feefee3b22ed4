package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/observability"
)

// LivenessError reports machines left in hot states when no machine was enabled.
type LivenessError struct {
	Machines []domain.MachineID
}

func (e *LivenessError) Error() string {
	ids := make([]string, len(e.Machines))
	for i, id := range e.Machines {
		ids[i] = string(id)
	}
	return fmt.Sprintf("liveness violation: hot machines at quiescence: %s", strings.Join(ids, ", "))
}

// PanicError is a contract violation or a panicking handler caught during a step.
type PanicError struct {
	Machine domain.MachineID
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("machine %s panicked: %v", e.Machine, e.Value)
}

// Outcome classifies the error a run ended with.
func Outcome(err error) string {
	var live *LivenessError
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, domain.ErrAssumeFailure):
		return observability.OutcomePruned
	case errors.As(err, &live):
		return observability.OutcomeLiveness
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeCanceled
	default:
		return observability.OutcomeBug
	}
}
