package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/prt/pkg/domain"
)

// ComposeHooks returns hooks that call each set in order. Nil callbacks are skipped.
func ComposeHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnMachineCreated = chain(out.OnMachineCreated, h.OnMachineCreated)
		out.OnMachineHalted = chain(out.OnMachineHalted, h.OnMachineHalted)
		out.OnStep = chain(out.OnStep, h.OnStep)
		out.OnSend = chain(out.OnSend, h.OnSend)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LoggingHooks logs every lifecycle notification at debug level,
// except halts, which are logged at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMachineCreated: func(ctx context.Context, e *domain.MachineEvent) {
			logger.DebugContext(ctx, "machine_created", "run", e.RunID, "machine", string(e.Machine), "type", e.MachineType)
		},
		OnMachineHalted: func(ctx context.Context, e *domain.MachineEvent) {
			logger.InfoContext(ctx, "machine_halted", "run", e.RunID, "machine", string(e.Machine), "type", e.MachineType)
		},
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step",
				"run", e.RunID,
				"step", e.Step,
				"machine", string(e.Machine),
				"state", string(e.State),
				"reason", e.Reason.String(),
			)
		},
		OnSend: func(ctx context.Context, e *domain.SendEvent) {
			logger.DebugContext(ctx, "send",
				"run", e.RunID,
				"from", string(e.From),
				"to", string(e.To),
				"event", e.Event,
				"dropped", e.Dropped,
			)
		},
	}
}
