// Package testutil provides shared test infrastructure for the analyzer packages.
// It builds synthetic S2E logs and call traces so parser, differ and driver
// tests describe their inputs the same way.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// LogBuilder assembles an S2E debug log line by line.
type LogBuilder struct {
	lines   []string
	elapsed int
}

// NewLogBuilder creates an empty LogBuilder.
func NewLogBuilder() *LogBuilder {
	return &LogBuilder{}
}

// Plugin appends a plugin line "<elapsed> [State <state>] <plugin>: <msg>".
func (b *LogBuilder) Plugin(state int, plugin, msg string) *LogBuilder {
	b.elapsed++
	b.lines = append(b.lines, fmt.Sprintf("%d [State %d] %s: %s", b.elapsed, state, plugin, msg))
	return b
}

// TestCase appends a TestCaseGenerator line.
func (b *LogBuilder) TestCase(state int, instr, syscalls uint64) *LogBuilder {
	return b.Plugin(state, "TestCaseGenerator", fmt.Sprintf(
		"generating test case at address 0x401000; the number of instruction %d; the number of syscall %d;",
		instr, syscalls))
}

// Call appends a LatencyTracker line. runs is the execution time without unit.
func (b *LogBuilder) Call(state int, function, caller string, activity, parent uint64, runs string) *LogBuilder {
	return b.Plugin(state, "LatencyTracker", fmt.Sprintf(
		"Function %s; activityId %d; caller %s; parentId %d; runs %sms;",
		function, activity, caller, parent, runs))
}

// Raw appends a line verbatim.
func (b *LogBuilder) Raw(line string) *LogBuilder {
	b.lines = append(b.lines, line)
	return b
}

// String returns the log text, newline terminated.
func (b *LogBuilder) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// WriteFile writes the log into dir/name and returns the path.
func (b *LogBuilder) WriteFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write log fixture: %v", err)
	}
	return path
}

// NewTrace builds a FunctionTrace from "function/caller" pairs. Every item
// runs 1ms and gets a sequential activity id.
func NewTrace(keys ...string) *trace.FunctionTrace {
	var ft trace.FunctionTrace
	for i, k := range keys {
		function, caller, ok := strings.Cut(k, "/")
		if !ok {
			caller = trace.RootCaller
		}
		ft.Append(trace.NewItem(function, decimal.NewFromInt(1), caller, uint64(i+1), 0))
	}
	return &ft
}
