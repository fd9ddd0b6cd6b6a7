// Package vm implements the EXDot execution engine.
//
// The program text is the instruction stream: the VM walks it byte by byte
// with a single cursor. This package contains:
//   - Stack and Bank: up to ten fixed-capacity integer stacks, one current
//   - the skip engine that finds matching ] | ' terminators while passing
//     over ! comments and # escape sequences
//   - the label pre-scan (A–Z) with captured nesting counters
//   - the dispatcher and the # escape decoder
//   - Console, the I/O collaborator, and StreamConsole over io streams
//   - Status, the closed set of run outcomes with their external codes
package vm
