/*
Package ports defines the driven ports (interfaces) of the reference driver.

These interfaces decouple the driver from external implementations, allowing
runs to be checkpointed to various storage backends and scheduled by
pluggable strategies.

# Key Interfaces

  - CheckpointStore: persists and loads run checkpoints (e.g., Memory or Redis).
  - DistributedLocker: distributed locking for concurrent access to a run.
  - ChoiceSource: supplies scheduling and nondeterministic decisions.
  - Inspector: read-only view of the machines of a live run.
*/
package ports
