// Package results owns the on-disk bookkeeping of a run.
//
// Ownership boundary:
// - scratch documents handed to the decision procedure
// - result artifacts for non-attack verdicts
// - append-only phase log streams
// - per-phase summary files
//
// Every path is namespaced by phase, so phase workers never share a file.
package results
