package domain

import "time"

// EventRecord is a buffered event occurrence keyed by event name.
type EventRecord struct {
	Event   string `json:"event" yaml:"event"`
	Payload Value  `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// FrameRecord is one state stack frame.
type FrameRecord struct {
	State       StateID     `json:"state" yaml:"state"`
	Temperature Temperature `json:"temperature" yaml:"temperature"`
	Deferred    []string    `json:"deferred,omitempty" yaml:"deferred,omitempty"`
	Actions     []string    `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ContinuationRecord mirrors Continuation with names instead of descriptors.
type ContinuationRecord struct {
	Reason      string    `json:"reason" yaml:"reason"`
	ReturnTo    int       `json:"return_to,omitempty" yaml:"return_to,omitempty"`
	RetVal      Value     `json:"ret_val,omitempty" yaml:"ret_val,omitempty"`
	RetLocals   []Value   `json:"ret_locals,omitempty" yaml:"ret_locals,omitempty"`
	Target      MachineID `json:"target,omitempty" yaml:"target,omitempty"`
	Event       string    `json:"event,omitempty" yaml:"event,omitempty"`
	Payload     Value     `json:"payload,omitempty" yaml:"payload,omitempty"`
	Receive     []string  `json:"receive,omitempty" yaml:"receive,omitempty"`
	MachineType string    `json:"machine_type,omitempty" yaml:"machine_type,omitempty"`
	Created     MachineID `json:"created,omitempty" yaml:"created,omitempty"`
	Nondet      bool      `json:"nondet,omitempty" yaml:"nondet,omitempty"`
}

// FunFrameRecord is one function stack frame.
type FunFrameRecord struct {
	Fun          string             `json:"fun" yaml:"fun"`
	PC           int                `json:"pc" yaml:"pc"`
	Locals       []Value            `json:"locals,omitempty" yaml:"locals,omitempty"`
	Returned     Value              `json:"returned,omitempty" yaml:"returned,omitempty"`
	Continuation ContinuationRecord `json:"continuation" yaml:"continuation"`
	Ready        bool               `json:"ready,omitempty" yaml:"ready,omitempty"`
}

// StepRecord is one unit of pending handler work.
type StepRecord struct {
	Kind    string  `json:"kind" yaml:"kind"`
	State   StateID `json:"state,omitempty" yaml:"state,omitempty"`
	Fun     string  `json:"fun,omitempty" yaml:"fun,omitempty"`
	Exit    bool    `json:"exit,omitempty" yaml:"exit,omitempty"`
	Popped  bool    `json:"popped,omitempty" yaml:"popped,omitempty"`
	Event   string  `json:"event,omitempty" yaml:"event,omitempty"`
	Payload Value   `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// MachineRecord is a serialisable snapshot of one machine.
type MachineRecord struct {
	ID      MachineID        `json:"id" yaml:"id"`
	Type    string           `json:"type" yaml:"type"`
	Phase   string           `json:"phase" yaml:"phase"`
	Event   string           `json:"event,omitempty" yaml:"event,omitempty"`
	Payload Value            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Buffer  []EventRecord    `json:"buffer,omitempty" yaml:"buffer,omitempty"`
	States  []FrameRecord    `json:"states,omitempty" yaml:"states,omitempty"`
	Funs    []FunFrameRecord `json:"funs,omitempty" yaml:"funs,omitempty"`
	Receive []string         `json:"receive,omitempty" yaml:"receive,omitempty"`
	Pending []StepRecord     `json:"pending,omitempty" yaml:"pending,omitempty"`
	InExit  bool             `json:"in_exit,omitempty" yaml:"in_exit,omitempty"`
}

// ChoiceKind distinguishes scheduling decisions from nondeterministic booleans.
type ChoiceKind string

const (
	ChoiceSchedule ChoiceKind = "schedule"
	ChoiceBool     ChoiceKind = "bool"
)

// Choice is one decision taken by a driver strategy. Replaying the same
// sequence of choices against the same program reproduces the run.
type Choice struct {
	Kind  ChoiceKind `json:"kind" yaml:"kind"`
	Value int        `json:"value" yaml:"value"`
}

// Checkpoint captures an exploration run: how to replay it and where it ended.
type Checkpoint struct {
	ID        string          `json:"id" yaml:"id"`
	RunID     string          `json:"run_id" yaml:"run_id"`
	Program   string          `json:"program" yaml:"program"`
	Seed      uint64          `json:"seed" yaml:"seed"`
	Payload   Value           `json:"payload,omitempty" yaml:"payload,omitempty"`
	Steps     int             `json:"steps" yaml:"steps"`
	Choices   []Choice        `json:"choices" yaml:"choices"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	Machines  []MachineRecord `json:"machines,omitempty" yaml:"machines,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`

	// Replays counts ReplayCheckpoint calls; LastReplay is the outcome of the latest one.
	Replays    int    `json:"replays,omitempty" yaml:"replays,omitempty"`
	LastReplay string `json:"last_replay,omitempty" yaml:"last_replay,omitempty"`
}
