// Package violet drives the analysis of Violet S2E traces.
//
// # Reading Guide
//
// The analysis runs in two phases:
//   - violet/parser: reads the S2E debug log (or a binary .dat trace) into a trace.CostTable
//   - analyzer.go: diffs the function trace of every pair of states and writes the report
//
// # Architecture
//
// This package wires the phases together; the pieces live in sub-packages:
//   - violet/trace: cost records, function traces and summaries (pure data)
//   - violet/parser: log lexer and table builder
//   - violet/difftrace: trace alignment and unified diff rendering
//   - violet/symtab: objdump symbol tables for annotating addresses
//
// # Key Interfaces
//
//   - TraceDiffer: renders the difference between two traces. difftrace.Differ
//     prints the items themselves; difftrace.KeyDiffer prints only their keys.
package violet
