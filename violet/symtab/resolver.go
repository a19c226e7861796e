package symtab

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// DefaultCacheSize is the number of resolved addresses kept by a Resolver.
const DefaultCacheSize = 4096

func hashAddress(addr uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], addr)
	return uint32(xxh3.Hash(b[:]))
}

// Resolver maps hex addresses from the trace to symbol names. Traces repeat
// the same few addresses many times, so results are kept in an LRU cache.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	table *Table
	cache *freelru.LRU[uint64, string]
}

// NewResolver creates a Resolver over t caching up to size addresses.
func NewResolver(t *Table, size uint32) (*Resolver, error) {
	if size == 0 {
		size = DefaultCacheSize
	}
	cache, err := freelru.New[uint64, string](size, hashAddress)
	if err != nil {
		return nil, fmt.Errorf("creating symbol cache: %w", err)
	}
	return &Resolver{table: t, cache: cache}, nil
}

// Resolve returns the symbol name for a "0x..." address: the bare name when
// a symbol starts there, "name+0xoff" inside a symbol, and "" otherwise.
func (r *Resolver) Resolve(addr string) string {
	a, err := strconv.ParseUint(strings.TrimPrefix(addr, "0x"), 16, 64)
	if err != nil || a == 0 {
		return ""
	}
	if name, ok := r.cache.Get(a); ok {
		return name
	}
	name := r.lookup(a)
	r.cache.Add(a, name)
	return name
}

func (r *Resolver) lookup(a uint64) string {
	sym, ok := r.table.containing(a)
	if !ok {
		return ""
	}
	if sym.Address == a {
		return sym.Name
	}
	if sym.Size != 0 && a >= sym.Address+sym.Size {
		return ""
	}
	return fmt.Sprintf("%s+0x%x", sym.Name, a-sym.Address)
}

func (r *Resolver) annotate(addr string) string {
	if name := r.Resolve(addr); name != "" {
		return addr + " <" + name + ">"
	}
	return addr
}

// FormatItem renders an item like trace.Item.String with symbol names after
// the function and caller addresses. It can be used as a diff item formatter.
func (r *Resolver) FormatItem(it trace.Item) string {
	return fmt.Sprintf("Function %s; caller %s; activityId %d; parentId %d; runs %sms",
		r.annotate(it.Function), r.annotate(it.Caller), it.ActivityID, it.ParentID, it.ExecutionTime.String())
}
