/*
Package domain contains the pure data model shared by the machine runtime, its drivers and its adapters.

It has no I/O and no dependency on the runtime itself, so stores and transports can
persist or expose machine state without importing the interpreter.

# Key Entities

  - Event: immutable descriptor of an event kind (name, payload type, instance bound, assume flag).
  - Continuation: why a function activation suspended and how it must be resumed.
  - Temperature: liveness classification of a state (cold, warm, hot).
  - MachineRecord / Checkpoint: name-keyed snapshots of machines and of exploration runs.
*/
package domain
