// Package checkpoint serialises access to stored run checkpoints. A Manager
// wraps a ports.CheckpointStore with per-run locking, optionally backed by a
// ports.DistributedLocker when several processes share the store.
package checkpoint
