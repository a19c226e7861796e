package parser

import (
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// Plugin names as they appear in the S2E log.
const (
	PluginTestCase = "TestCaseGenerator"
	PluginLatency  = "LatencyTracker"
)

var (
	pluginLineRE = regexp.MustCompile(`^(\d+) \[State (\d+)\] (\w+): (.*)`)
	testCaseRE   = regexp.MustCompile(`^generating test case at address ([0-9a-fx]+); the number of instruction (\d+); the number of syscall (\d+);`)
	latencyRE    = regexp.MustCompile(`^Function ([0-9a-fx]+); activityId (\d+); caller ([0-9a-fx]+); parentId (\d+); runs ([0-9.e\-]+ms);`)
)

// EventKind tags the result of lexing one log line.
type EventKind int

const (
	// EventUnrecognized covers unrelated output, unknown plugins and malformed messages.
	EventUnrecognized EventKind = iota
	// EventTestCase is a TestCaseGenerator line carrying the state's cost counters.
	EventTestCase
	// EventLatency is a LatencyTracker line carrying one function call.
	EventLatency
)

func (k EventKind) String() string {
	switch k {
	case EventTestCase:
		return "test-case"
	case EventLatency:
		return "latency"
	default:
		return "unrecognized"
	}
}

// TestCaseEvent holds the fields of a test-case-generation message.
type TestCaseEvent struct {
	Address    string
	InstrCnt   uint64
	SyscallCnt uint64
}

// LatencyEvent holds the fields of a latency message.
type LatencyEvent struct {
	Function      string
	ActivityID    uint64
	Caller        string
	ParentID      uint64
	ExecutionTime decimal.Decimal
}

// Event is the lexed form of a log line. Only the payload matching Kind is set.
type Event struct {
	Kind    EventKind
	StateID int
	Plugin  string
	// Reason explains why a line matching the outer grammar was not recognized.
	Reason   string
	TestCase TestCaseEvent
	Latency  LatencyEvent
}

// Lex classifies a single log line. It never fails: anything it cannot make
// sense of comes back as EventUnrecognized.
func Lex(line string) Event {
	m := pluginLineRE.FindStringSubmatch(line)
	if m == nil {
		return Event{Kind: EventUnrecognized}
	}
	stateID, err := strconv.Atoi(m[2])
	if err != nil {
		return Event{Kind: EventUnrecognized, Plugin: m[3], Reason: "state id out of range"}
	}
	ev := Event{Kind: EventUnrecognized, StateID: stateID, Plugin: m[3]}

	switch ev.Plugin {
	case PluginTestCase:
		lexTestCase(&ev, m[4])
	case PluginLatency:
		lexLatency(&ev, m[4])
	default:
		ev.Reason = "unknown plugin"
	}
	return ev
}

func lexTestCase(ev *Event, msg string) {
	m := testCaseRE.FindStringSubmatch(msg)
	if m == nil {
		ev.Reason = "message does not match test case grammar"
		return
	}
	instr, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		ev.Reason = "instruction count out of range"
		return
	}
	syscalls, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		ev.Reason = "syscall count out of range"
		return
	}
	ev.Kind = EventTestCase
	ev.TestCase = TestCaseEvent{Address: m[1], InstrCnt: instr, SyscallCnt: syscalls}
}

func lexLatency(ev *Event, msg string) {
	m := latencyRE.FindStringSubmatch(msg)
	if m == nil {
		ev.Reason = "message does not match latency grammar"
		return
	}
	activity, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		ev.Reason = "activity id out of range"
		return
	}
	parent, err := strconv.ParseUint(m[4], 10, 64)
	if err != nil {
		ev.Reason = "parent id out of range"
		return
	}
	execTime, err := ParseMillis(m[5])
	if err != nil {
		ev.Reason = err.Error()
		return
	}
	ev.Kind = EventLatency
	ev.Latency = LatencyEvent{
		Function:      m[1],
		ActivityID:    activity,
		Caller:        m[3],
		ParentID:      parent,
		ExecutionTime: execTime,
	}
}
