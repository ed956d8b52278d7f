// Package orchestrator runs one sequential worker per phase.
//
// Ownership boundary:
// - lattice enumeration, pruning and adjudication order within a phase
// - phase log, result artifacts and summary per phase
// - progress snapshots readable while workers run
//
// Phases run concurrently and share nothing but the oracle and the
// read-only template store.
package orchestrator
