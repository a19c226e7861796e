package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeDatRecord(rec datRecord) []byte {
	le := binary.LittleEndian
	b := make([]byte, DatRecordSize)
	le.PutUint32(b[0:4], uint32(rec.StateID))
	le.PutUint64(b[4:12], rec.Address)
	le.PutUint64(b[12:20], rec.RetAddress)
	le.PutUint64(b[20:28], rec.CallerAddress)
	le.PutUint64(b[28:36], math.Float64bits(rec.ExecutionTime))
	le.PutUint64(b[36:44], rec.ActivityID)
	le.PutUint64(b[44:52], rec.ParentID)
	le.PutUint64(b[52:60], uint64(rec.Begin))
	return b
}

func datStream(recs ...datRecord) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		buf.Write(encodeDatRecord(r))
	}
	return buf.Bytes()
}

func TestDecodeDatRecord_InverseOfEncode(t *testing.T) {
	rec := datRecord{StateID: 3, Address: 0x4005d6, RetAddress: 0x400700, CallerAddress: 0x400600,
		ExecutionTime: 1.25, ActivityID: 9, ParentID: 4, Begin: -1}

	assert.Equal(t, rec, decodeDatRecord(encodeDatRecord(rec)))
}

func TestParseDat_BuildsLazyRecords(t *testing.T) {
	// GIVEN two records for state 1 and one for state 2
	data := datStream(
		datRecord{StateID: 1, Address: 0x10, CallerAddress: 0, ExecutionTime: 2.5, ActivityID: 1},
		datRecord{StateID: 2, Address: 0x10, CallerAddress: 0, ExecutionTime: 1, ActivityID: 1},
		datRecord{StateID: 1, Address: 0x20, CallerAddress: 0x10, ExecutionTime: 0.5, ActivityID: 2, ParentID: 1},
	)

	// WHEN parsed
	p := New(nil)
	table, err := p.ParseDat(bytes.NewReader(data))

	// THEN records carry the calls with hex addresses and root time only
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, table.StateIDs())
	r, _ := table.Get(1)
	require.Equal(t, 2, r.Trace().Len())
	assert.Equal(t, "0x10", r.Trace().At(0).Function)
	assert.Equal(t, "0x0", r.Trace().At(0).Caller)
	assert.Equal(t, "0x10", r.Trace().At(1).Caller)
	assert.Equal(t, "2.5", r.ExecutionTime.String())
	assert.Equal(t, 2, p.Stats().Created)
}

func TestParseDat_TruncatedRecord(t *testing.T) {
	data := datStream(datRecord{StateID: 1, Address: 0x10, ExecutionTime: 1})
	data = append(data, 0x01, 0x02, 0x03)

	table, err := New(nil).ParseDat(bytes.NewReader(data))

	assert.Nil(t, table)
	assert.ErrorContains(t, err, "truncated")
}

func TestParseDat_SkipsMalformedRecords(t *testing.T) {
	data := datStream(
		datRecord{StateID: -1, Address: 0x10, ExecutionTime: 1},
		datRecord{StateID: 1, Address: 0x10, ExecutionTime: math.NaN()},
		datRecord{StateID: 1, Address: 0x20, ExecutionTime: 3},
	)

	p := New(nil)
	table, err := p.ParseDat(bytes.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().Skipped)
	r, _ := table.Get(1)
	assert.Equal(t, 1, r.Trace().Len())
}

func TestParseFile_DatExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.dat")
	require.NoError(t, os.WriteFile(path, datStream(datRecord{StateID: 5, Address: 0xabc, ExecutionTime: 4}), 0644))

	table, err := New(nil).ParseFile(path)

	require.NoError(t, err)
	r, ok := table.Get(5)
	require.True(t, ok)
	assert.Equal(t, "0xabc", r.Trace().At(0).Function)
}

func TestParseFile_TruncatedDat_ParseSourceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.dat")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	_, err := New(nil).ParseFile(path)

	var pse *ParseSourceError
	assert.True(t, errors.As(err, &pse))
}
