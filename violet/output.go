package violet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/violet-project/violet-analyzer/violet/difftrace"
	"github.com/violet-project/violet-analyzer/violet/trace"
)

// bufferedFile flushes its buffer before closing the file.
type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	if err := b.Flush(); err != nil {
		b.f.Close()
		return fmt.Errorf("flushing %s: %w", b.f.Name(), err)
	}
	return b.f.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenOutput opens the report sink. An empty path selects stdout, which is
// never closed; a nil stdout means os.Stdout. A file is created or truncated.
func OpenOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return nopCloser{stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	return &bufferedFile{Writer: bufio.NewWriter(f), f: f}, nil
}

// WriteCostSummary writes one line per state in ascending id order:
//
//	[State 1] => the number of instruction is 120, the number of syscall is 4, the total execution time 2.5ms
func WriteCostSummary(w io.Writer, table *trace.CostTable) error {
	for _, id := range table.StateIDs() {
		r, _ := table.Get(id)
		_, err := fmt.Fprintf(w, "[State %d] => the number of instruction is %d, the number of syscall is %d, the total execution time %sms\n",
			id, r.InstrCnt, r.SyscallCnt, r.ExecutionTime.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// DumpTraces writes the trace of every state to dir/violet_trace_state_<id>.txt,
// one formatted item per line. A nil format uses trace.Item.String.
func DumpTraces(table *trace.CostTable, dir string, format difftrace.ItemFormatter) ([]string, error) {
	if format == nil {
		format = trace.Item.String
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating dump directory: %w", err)
	}

	var paths []string
	for _, id := range table.StateIDs() {
		r, _ := table.Get(id)
		path := filepath.Join(dir, StateLabel(id)+".txt")
		if err := dumpTrace(path, r.Trace(), format); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func dumpTrace(path string, ft *trace.FunctionTrace, format difftrace.ItemFormatter) error {
	out, err := OpenOutput(path, nil)
	if err != nil {
		return err
	}
	for _, it := range ft.Items() {
		if _, err := fmt.Fprintln(out, format(it)); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return out.Close()
}
