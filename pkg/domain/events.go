package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle notification.
type EventType string

const (
	EventMachineCreated EventType = "machine_created"
	EventMachineHalted  EventType = "machine_halted"
	EventStep           EventType = "step"
	EventSend           EventType = "send"
	EventNondet         EventType = "nondet"
)

// EventBase contains common fields for all lifecycle notifications.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// MachineEvent reports creation or halting of a machine.
type MachineEvent struct {
	EventBase
	Machine     MachineID `json:"machine"`
	MachineType string    `json:"machine_type"`
}

// StepEvent reports one scheduled step and the continuation it ended on.
type StepEvent struct {
	EventBase
	Machine     MachineID `json:"machine"`
	MachineType string    `json:"machine_type"`
	State       StateID   `json:"state,omitempty"`
	Reason      Reason    `json:"reason"`
	Step        int       `json:"step"`
}

// SendEvent reports a serviced send.
type SendEvent struct {
	EventBase
	From    MachineID `json:"from"`
	To      MachineID `json:"to"`
	Event   string    `json:"event"`
	Dropped bool      `json:"dropped,omitempty"`
}

// LifecycleHooks defines callbacks for driver observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnMachineCreated func(context.Context, *MachineEvent)
	OnMachineHalted  func(context.Context, *MachineEvent)
	OnStep           func(context.Context, *StepEvent)
	OnSend           func(context.Context, *SendEvent)
}
