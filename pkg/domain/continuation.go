package domain

import (
	"fmt"

	"github.com/aretw0/prt/pkg/set"
)

// Reason tags why a function activation suspended.
type Reason int

const (
	// ReasonNone marks a frame that has not suspended since it was pushed or resumed.
	ReasonNone Reason = iota
	ReasonReturn
	ReasonPop
	ReasonRaise
	ReasonSend
	ReasonReceive
	ReasonNondet
	ReasonNewMachine
)

var reasonNames = [...]string{
	ReasonNone:       "none",
	ReasonReturn:     "return",
	ReasonPop:        "pop",
	ReasonRaise:      "raise",
	ReasonSend:       "send",
	ReasonReceive:    "receive",
	ReasonNondet:     "nondet",
	ReasonNewMachine: "new_machine",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for i, name := range reasonNames {
		if name == s {
			return Reason(i), nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown reason: %s", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(b []byte) error {
	v, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Suspends reports whether the driver must act before the frame can be resumed.
func (r Reason) Suspends() bool {
	switch r {
	case ReasonSend, ReasonReceive, ReasonNondet, ReasonNewMachine:
		return true
	}
	return false
}

// Continuation records why a function stopped and what the driver needs to resume it.
//
// Fields are meaningful per reason:
//
//	Return      RetVal, RetLocals
//	Pop         (none)
//	Raise       Event, Payload
//	Send        ReturnTo, RetLocals, Target, Event, Payload
//	Receive     ReturnTo, RetLocals, Receive
//	Nondet      ReturnTo, RetLocals, Nondet (written by the driver)
//	NewMachine  ReturnTo, RetLocals, MachineType, Payload, Created (written by the driver)
type Continuation struct {
	Reason      Reason
	ReturnTo    int
	RetVal      Value
	RetLocals   []Value
	Target      MachineID
	Event       *Event
	Payload     Value
	Receive     set.Set[*Event]
	MachineType string
	Created     MachineID
	// Nondet is supplied by the driver after the continuation is built
	// and is therefore preserved when a new continuation is recorded.
	Nondet bool
}

// Reset clears every field except Nondet and sets the reason.
func (c *Continuation) Reset(reason Reason) {
	*c = Continuation{Reason: reason, Nondet: c.Nondet}
}

// Clone returns a deep copy.
func (c Continuation) Clone() Continuation {
	out := c
	out.RetVal = CloneValue(c.RetVal)
	out.RetLocals = CloneValues(c.RetLocals)
	out.Payload = CloneValue(c.Payload)
	if c.Receive != nil {
		out.Receive = c.Receive.Clone()
	}
	return out
}
