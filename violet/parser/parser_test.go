package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/violet-project/violet-analyzer/violet/internal/testutil"
	"github.com/violet-project/violet-analyzer/violet/trace"
)

func parseString(t *testing.T, log string) (*trace.CostTable, Stats) {
	t.Helper()
	p := New(nil)
	table, err := p.Parse(strings.NewReader(log))
	require.NoError(t, err)
	return table, p.Stats()
}

func functions(ft *trace.FunctionTrace) []string {
	var out []string
	for _, it := range ft.Items() {
		out = append(out, it.Function)
	}
	return out
}

func TestParse_TestCaseThenLatency(t *testing.T) {
	// GIVEN a log with a test case event followed by calls for the same state
	log := testutil.NewLogBuilder().
		TestCase(1, 5000, 40).
		Call(1, "0x10", "0x0", 1, 0, "2.5").
		Call(1, "0x20", "0x10", 2, 1, "1.25").
		String()

	// WHEN parsed
	table, stats := parseString(t, log)

	// THEN the record keeps the counts and both calls
	r, ok := table.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(5000), r.InstrCnt)
	assert.Equal(t, uint64(40), r.SyscallCnt)
	assert.Equal(t, []string{"0x10", "0x20"}, functions(r.Trace()))
	// AND only the root call contributes to the execution time
	assert.Equal(t, "2.5", r.ExecutionTime.String())
	assert.Equal(t, Stats{Lines: 3, Matched: 3, TestCases: 1, Latencies: 2}, stats)
}

func TestParse_LatencyBeforeTestCase_CreatesRecordLazily(t *testing.T) {
	// GIVEN calls for a state that never gets a test case event
	log := testutil.NewLogBuilder().
		Call(4, "0x10", "0x0", 1, 0, "3").
		Call(4, "0x11", "0x10", 2, 1, "1").
		String()

	// WHEN parsed
	table, stats := parseString(t, log)

	// THEN a zero-count record holds the calls
	r, ok := table.Get(4)
	require.True(t, ok)
	assert.Equal(t, uint64(0), r.InstrCnt)
	assert.Equal(t, uint64(0), r.SyscallCnt)
	assert.Equal(t, 2, r.Trace().Len())
	assert.Equal(t, 1, stats.Created)
}

// A test case event arriving after latency events replaces the record and
// drops the calls collected so far. This mirrors the plugin log semantics the
// analyzer has always had; the test pins it so a change is deliberate.
func TestParse_TestCaseAfterLatency_DiscardsEarlierTrace(t *testing.T) {
	log := testutil.NewLogBuilder().
		Call(2, "0x10", "0x0", 1, 0, "3").
		TestCase(2, 10, 1).
		Call(2, "0x30", "0x0", 2, 0, "4").
		String()

	table, stats := parseString(t, log)

	r, ok := table.Get(2)
	require.True(t, ok)
	assert.Equal(t, uint64(10), r.InstrCnt)
	assert.Equal(t, []string{"0x30"}, functions(r.Trace()))
	assert.Equal(t, "4", r.ExecutionTime.String())
	assert.Equal(t, 1, stats.Overwritten)
}

func TestParse_InterleavedStates_PreserveOrderPerState(t *testing.T) {
	// GIVEN calls of two states interleaved with unrelated output
	log := testutil.NewLogBuilder().
		Call(1, "0xa1", "0x0", 1, 0, "1").
		Raw("BEGIN searcher description").
		Call(2, "0xb1", "0x0", 1, 0, "1").
		TestCase(2, 1, 1).
		Call(1, "0xa2", "0xa1", 2, 1, "1").
		Call(2, "0xb2", "0x0", 2, 0, "1").
		TestCase(1, 1, 1).
		Call(1, "0xa3", "0x0", 3, 0, "1").
		Call(2, "0xb3", "0xb2", 3, 2, "1").
		String()

	// WHEN parsed
	table, _ := parseString(t, log)

	// THEN each trace lists its calls in log order since its last test case event
	r1, _ := table.Get(1)
	r2, _ := table.Get(2)
	assert.Equal(t, []string{"0xa3"}, functions(r1.Trace()))
	assert.Equal(t, []string{"0xb2", "0xb3"}, functions(r2.Trace()))
}

func TestParse_OrderPreservedForPreExistingAndLazyRecords(t *testing.T) {
	b := testutil.NewLogBuilder().TestCase(1, 1, 1)
	want := []string{}
	for i := 0; i < 50; i++ {
		fn := "0x" + strings.Repeat("f", i%5+1) + string(rune('0'+i%10))
		b.Call(1, fn, "0x0", uint64(i), 0, "1")
		b.Call(9, fn, "0x0", uint64(i), 0, "1")
		want = append(want, fn)
	}

	table, _ := parseString(t, b.String())

	pre, _ := table.Get(1)
	lazy, _ := table.Get(9)
	assert.Equal(t, want, functions(pre.Trace()))
	assert.Equal(t, want, functions(lazy.Trace()))
}

func TestParse_RootExecutionTime_IsExactSumOfRootItems(t *testing.T) {
	// GIVEN many root calls whose float sum would drift
	b := testutil.NewLogBuilder()
	for i := 0; i < 1000; i++ {
		b.Call(0, "0x10", "0x0", uint64(2*i), 0, "0.1")
		b.Call(0, "0x20", "0x10", uint64(2*i+1), uint64(2*i), "0.3")
	}

	// WHEN parsed
	table, _ := parseString(t, b.String())

	// THEN the total is exact and excludes nested calls
	r, _ := table.Get(0)
	assert.Equal(t, "100", r.ExecutionTime.String())

	sum := decimal.Zero
	for _, it := range r.Trace().Items() {
		if it.IsRoot() {
			sum = sum.Add(it.ExecutionTime)
		}
	}
	assert.True(t, sum.Equal(r.ExecutionTime))
}

func TestParse_UnknownPluginLeavesTableUnchanged(t *testing.T) {
	base := testutil.NewLogBuilder().
		TestCase(1, 10, 2).
		Call(1, "0x10", "0x0", 1, 0, "1")
	before, _ := parseString(t, base.String())

	after, stats := parseString(t, base.
		Plugin(1, "ExecutionTracer", "Function 0x99; activityId 5; caller 0x0; parentId 0; runs 7ms;").
		Plugin(5, "MemoryTracer", "generating test case at address 0x1; the number of instruction 1; the number of syscall 1;").
		String())

	assert.Equal(t, before.StateIDs(), after.StateIDs())
	rb, _ := before.Get(1)
	ra, _ := after.Get(1)
	assert.Equal(t, rb.Trace().Items(), ra.Trace().Items())
	assert.Equal(t, 2, stats.Skipped)
}

func TestParse_NoRecognizedLines_EmptyTable(t *testing.T) {
	table, stats := parseString(t, "S2E: starting\nKLEE: done\n")

	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.StateIDs())
	assert.Equal(t, 2, stats.Lines)
	assert.Equal(t, 0, stats.Matched)
}

func TestParse_EmptyInput(t *testing.T) {
	table, _ := parseString(t, "")
	assert.Equal(t, 0, table.Len())
}

func TestParseFile_MissingFile_ParseSourceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	table, err := New(nil).ParseFile(path)

	assert.Nil(t, table)
	var pse *ParseSourceError
	require.True(t, errors.As(err, &pse))
	assert.Equal(t, path, pse.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseFile_TextLog(t *testing.T) {
	path := testutil.NewLogBuilder().
		TestCase(1, 1, 1).
		Call(1, "0x10", "0x0", 1, 0, "1").
		TestCase(2, 2, 2).
		WriteFile(t, t.TempDir(), "debug.txt")

	table, err := New(nil).ParseFile(path)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, table.StateIDs())
}

func TestParseFile_ZstdCompressedLog(t *testing.T) {
	// GIVEN a zstd-compressed S2E log
	log := testutil.NewLogBuilder().
		TestCase(3, 9, 9).
		Call(3, "0x10", "0x0", 1, 0, "1.5").
		String()
	path := filepath.Join(t.TempDir(), "debug.txt.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(log))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	// WHEN parsed from disk
	table, err := New(nil).ParseFile(path)

	// THEN it is decompressed transparently
	require.NoError(t, err)
	r, ok := table.Get(3)
	require.True(t, ok)
	assert.Equal(t, "1.5", r.ExecutionTime.String())
}

func TestParseFile_CorruptZstd_ParseSourceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.txt.zst")
	require.NoError(t, os.WriteFile(path, []byte("definitely not zstd"), 0644))

	_, err := New(nil).ParseFile(path)

	var pse *ParseSourceError
	assert.True(t, errors.As(err, &pse))
}

func TestParse_OverlongLine_Fails(t *testing.T) {
	line := strings.Repeat("x", maxLineBytes+1)

	table, err := New(nil).Parse(strings.NewReader(line))

	assert.Nil(t, table)
	assert.Error(t, err)
}
