// Package provision contains the index-pool control loop.
//
// A Manager keeps the number of ready-to-assign vector indexes at a
// configured floor and tears down records left behind by failures. Two
// long-running workers drive it: the reconcile worker fills the pool, the
// cleanup worker drains FAILED, stuck-PROVISIONING and orphaned-CLEANUP
// records. Both wake on coalesced triggers; the reconcile worker also wakes
// periodically, and an external scheduler delivers the daily cleanup sweep.
//
// A cycle never kills its worker: task failures are aggregated, logged and
// surfaced to the caller, and the worker returns to its wait loop.
package provision
