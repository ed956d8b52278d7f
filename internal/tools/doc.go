// Package tools provides the command execution boundary used by the oracle.
//
// Ownership boundary:
// - local command execution (os/exec)
//
// - remote command execution over SSH
//
// - context-bound termination with partial output capture
package tools
