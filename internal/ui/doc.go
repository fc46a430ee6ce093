// Package ui renders discovery results in the terminal.
//
// Two front ends share one palette:
//
//   - HostList: an interactive Bubble Tea list fed by a tracker
//     subscription. Enter selects a host, "/" filters, q quits.
//   - Printer: plain, append-only output for pipes and logs. One block is
//     printed per snapshot change.
//
// Callers pick between them with IsTerminal.
package ui
