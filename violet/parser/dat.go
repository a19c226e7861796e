package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// DatRecordSize is the size of one packed record in a binary trace file.
const DatRecordSize = 60

// datRecord mirrors the packed, little-endian record LatencyTracker
// serializes. Field order and widths must not change.
type datRecord struct {
	StateID       int32
	Address       uint64
	RetAddress    uint64
	CallerAddress uint64
	ExecutionTime float64 // milliseconds
	ActivityID    uint64
	ParentID      uint64
	Begin         int64 // clock_t at call entry
}

// ParseDat reads a binary trace file. The binary format carries no test case
// events, so every state is created lazily with zero counts.
func (p *Parser) ParseDat(r io.Reader) (*trace.CostTable, error) {
	p.stats = Stats{}
	table := trace.NewCostTable()

	var buf [DatRecordSize]byte
	for n := 0; ; n++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("record %d truncated", n)
			}
			return nil, fmt.Errorf("reading record %d: %w", n, err)
		}
		rec := decodeDatRecord(buf[:])
		p.stats.Lines++
		if rec.StateID < 0 || math.IsNaN(rec.ExecutionTime) || math.IsInf(rec.ExecutionTime, 0) || rec.ExecutionTime < 0 {
			p.stats.Skipped++
			p.log.WithField("record", n).Debug("Ignoring malformed binary record")
			continue
		}
		p.stats.Matched++
		p.stats.Latencies++
		item := trace.NewItem(
			hexAddress(rec.Address),
			decimal.NewFromFloat(rec.ExecutionTime),
			hexAddress(rec.CallerAddress),
			rec.ActivityID,
			rec.ParentID,
		)
		p.addItem(table, int(rec.StateID), item, fmt.Sprintf("binary record %d", n))
	}
	return table, nil
}

func decodeDatRecord(b []byte) datRecord {
	le := binary.LittleEndian
	return datRecord{
		StateID:       int32(le.Uint32(b[0:4])),
		Address:       le.Uint64(b[4:12]),
		RetAddress:    le.Uint64(b[12:20]),
		CallerAddress: le.Uint64(b[20:28]),
		ExecutionTime: math.Float64frombits(le.Uint64(b[28:36])),
		ActivityID:    le.Uint64(b[36:44]),
		ParentID:      le.Uint64(b[44:52]),
		Begin:         int64(le.Uint64(b[52:60])),
	}
}

// hexAddress formats an address the way the text log prints it, so that
// caller 0 becomes the root sentinel "0x0".
func hexAddress(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}
