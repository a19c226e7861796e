// Package parser reconstructs per-state cost records from Violet plugin output.
//
// Two sources are supported: the S2E debug log, where the plugins print one
// line per event, and the binary trace file LatencyTracker writes when it is
// not configured to print. Either may be zstd-compressed.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// maxLineBytes bounds a single log line; S2E can print very long diagnostics.
const maxLineBytes = 16 << 20

// Stats counts what a parse pass saw.
type Stats struct {
	Lines       int // lines read
	Matched     int // lines matching the outer plugin grammar
	TestCases   int // test case events applied
	Latencies   int // latency events applied
	Skipped     int // lines matching the outer grammar that were ignored
	Created     int // records created lazily by a latency event
	Overwritten int // records replaced by a later test case event
}

// Parser populates a CostTable from a trace source in a single pass.
type Parser struct {
	log   logrus.FieldLogger
	stats Stats
}

// New creates a Parser. A nil logger discards all log output.
func New(log logrus.FieldLogger) *Parser {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Parser{log: log}
}

// Stats returns the counters of the last parse.
func (p *Parser) Stats() Stats {
	return p.stats
}

// ParseFile parses the trace source at path. Files ending in .zst are
// decompressed on the fly; the remaining extension selects the format
// (.dat for the binary trace, anything else for the text log).
func (p *Parser) ParseFile(path string) (*trace.CostTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseSourceError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	name := path
	if strings.EqualFold(filepath.Ext(name), ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, &ParseSourceError{Path: path, Err: fmt.Errorf("opening zstd stream: %w", err)}
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	var table *trace.CostTable
	if strings.EqualFold(filepath.Ext(name), ".dat") {
		table, err = p.ParseDat(r)
	} else {
		table, err = p.Parse(r)
	}
	if err != nil {
		return nil, &ParseSourceError{Path: path, Err: err}
	}
	p.log.WithFields(logrus.Fields{
		"path":       path,
		"states":     table.Len(),
		"lines":      p.stats.Lines,
		"test_cases": p.stats.TestCases,
		"latencies":  p.stats.Latencies,
	}).Info("Parsed trace source")
	return table, nil
}

// Parse reads an S2E log and returns the reconstructed cost table.
// Lines that are not Violet plugin events are skipped; only read errors fail.
func (p *Parser) Parse(r io.Reader) (*trace.CostTable, error) {
	p.stats = Stats{}
	table := trace.NewCostTable()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		p.stats.Lines++
		line := scanner.Text()
		ev := Lex(line)
		if ev.Kind == EventUnrecognized {
			if ev.Plugin != "" {
				p.stats.Matched++
				p.stats.Skipped++
				p.log.WithFields(logrus.Fields{
					"line":   p.stats.Lines,
					"plugin": ev.Plugin,
				}).Debugf("Ignoring plugin line: %s", ev.Reason)
			}
			continue
		}
		p.stats.Matched++
		p.apply(table, ev, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", p.stats.Lines+1, err)
	}
	return table, nil
}

func (p *Parser) apply(table *trace.CostTable, ev Event, line string) {
	switch ev.Kind {
	case EventTestCase:
		p.stats.TestCases++
		if old, ok := table.Get(ev.StateID); ok {
			p.stats.Overwritten++
			if old.Trace().Len() > 0 {
				p.log.WithFields(logrus.Fields{
					"state":   ev.StateID,
					"dropped": old.Trace().Len(),
				}).Warn("Test case event replaces a record that already has trace items")
			}
		}
		record := trace.NewStateCostRecord(ev.StateID, ev.TestCase.InstrCnt, ev.TestCase.SyscallCnt)
		table.Put(record)
		p.log.WithFields(logrus.Fields{
			"state":        ev.StateID,
			"instructions": ev.TestCase.InstrCnt,
			"syscalls":     ev.TestCase.SyscallCnt,
		}).Debug("Test case")
	case EventLatency:
		p.stats.Latencies++
		l := ev.Latency
		p.addItem(table, ev.StateID, trace.NewItem(l.Function, l.ExecutionTime, l.Caller, l.ActivityID, l.ParentID), line)
	}
}

// addItem appends a call to the state's record, creating the record when the
// latency event precedes any test case event for the state.
func (p *Parser) addItem(table *trace.CostTable, stateID int, item trace.Item, origin string) {
	record, created := table.GetOrCreate(stateID)
	if created {
		p.stats.Created++
		p.log.WithField("state", stateID).Warnf("No record so far, creating one for %s", origin)
	}
	record.AddItem(item)
	p.log.WithField("state", stateID).Debug(item.String())
}
