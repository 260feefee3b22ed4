// Package driver is the reference scheduler for prt programs.
//
// A Driver owns nothing but configuration. Each Run creates the main machine,
// then repeatedly asks a ports.ChoiceSource which enabled machine steps next
// and services the continuation the step ended on:
//
//   - Send: the payload is checked against the event's payload type and the
//     event is enqueued into the target. Sends to halted machines are dropped.
//   - Nondet: a boolean is drawn from the choice source.
//   - NewMachine: a machine is created and started; its handle is supplied back.
//   - Receive: nothing; the machine becomes enabled once a matching event arrives.
//
// Every decision is recorded so a run can be replayed from a checkpoint.
// A run ends when no machine is enabled, when the step bound is reached, when
// its context ends, or on the first failure. Assume failures prune the run;
// unhandled events, exceeded instance bounds, invalid payloads and panics are
// bugs; hot machines at quiescence are liveness violations when enabled.
package driver
