package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks, in every value a
// checkpoint carries, the map entries whose keys match one of the patterns.
// Replaying a redacted checkpoint restarts the run with the masked payload.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, cp *domain.Checkpoint) error {
	cloned := *cp
	cloned.Payload = m.mask(cp.Payload)
	cloned.Machines = make([]domain.MachineRecord, len(cp.Machines))
	for i, rec := range cp.Machines {
		rec.Payload = m.mask(rec.Payload)
		rec.Buffer = append([]domain.EventRecord(nil), rec.Buffer...)
		for j := range rec.Buffer {
			rec.Buffer[j].Payload = m.mask(rec.Buffer[j].Payload)
		}
		rec.Funs = append([]domain.FunFrameRecord(nil), rec.Funs...)
		for j := range rec.Funs {
			f := &rec.Funs[j]
			f.Locals = m.maskAll(f.Locals)
			f.Returned = m.mask(f.Returned)
			f.Continuation.Payload = m.mask(f.Continuation.Payload)
			f.Continuation.RetVal = m.mask(f.Continuation.RetVal)
			f.Continuation.RetLocals = m.maskAll(f.Continuation.RetLocals)
		}
		rec.Pending = append([]domain.StepRecord(nil), rec.Pending...)
		for j := range rec.Pending {
			rec.Pending[j].Payload = m.mask(rec.Pending[j].Payload)
		}
		cloned.Machines[i] = rec
	}
	return m.next.Save(ctx, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a masked deep copy of v; the original is never modified.
func (m *redactMiddleware) mask(v domain.Value) domain.Value {
	v = domain.CloneValue(v)
	m.maskValue(v)
	return v
}

func (m *redactMiddleware) maskAll(vs []domain.Value) []domain.Value {
	if vs == nil {
		return nil
	}
	out := make([]domain.Value, len(vs))
	for i, v := range vs {
		out[i] = m.mask(v)
	}
	return out
}

func (m *redactMiddleware) maskValue(v domain.Value) {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if m.matches(k) {
				t[k] = Mask
				continue
			}
			m.maskValue(sub)
		}
	case map[string]string:
		for k := range t {
			if m.matches(k) {
				t[k] = Mask
			}
		}
	case []any:
		for _, sub := range t {
			m.maskValue(sub)
		}
	}
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
