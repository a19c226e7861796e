// Package symtab reads the code symbols of the traced binary from
// `objdump -t` output and maps trace addresses back to function names.
package symtab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	tableStart  = "SYMBOL TABLE:"
	textSection = ".text"
)

// Symbol is one code symbol.
type Symbol struct {
	Address uint64
	Size    uint64
	Name    string
}

// HexAddress renders the address the way the tracer logs it.
func (s Symbol) HexAddress() string {
	return "0x" + strconv.FormatUint(s.Address, 16)
}

// Table holds the .text symbols sorted by address.
type Table struct {
	symbols []Symbol
	byAddr  map[uint64]int
	byName  map[string]int
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	return len(t.symbols)
}

// Symbols returns the symbols in address order.
func (t *Table) Symbols() []Symbol {
	return append([]Symbol(nil), t.symbols...)
}

// ByAddress returns the symbol starting exactly at addr.
func (t *Table) ByAddress(addr uint64) (Symbol, bool) {
	i, ok := t.byAddr[addr]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[i], true
}

// ByName returns the symbol with the given name. When a name occurs more
// than once, the one with the lowest address wins.
func (t *Table) ByName(name string) (Symbol, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[i], true
}

// containing returns the closest symbol at or below addr.
func (t *Table) containing(addr uint64) (Symbol, bool) {
	i := sort.Search(len(t.symbols), func(i int) bool { return t.symbols[i].Address > addr })
	if i == 0 {
		return Symbol{}, false
	}
	return t.symbols[i-1], true
}

// ParseFile reads objdump -t output from path.
func ParseFile(path string, log logrus.FieldLogger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening symbol file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Parse(f, log)
	if err != nil {
		return nil, fmt.Errorf("reading symbol file %s: %w", path, err)
	}
	return t, nil
}

// Parse reads objdump -t output. Lines before the "SYMBOL TABLE:" marker are
// ignored, as are symbols outside .text and the section symbol itself.
func Parse(r io.Reader, log logrus.FieldLogger) (*Table, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	var symbols []Symbol
	started := false
	lineno := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == tableStart {
			started = true
			continue
		}
		if !started {
			continue
		}

		sym, ok, err := parseSymbolLine(line)
		if err != nil {
			log.WithField("line", lineno).Debugf("Skipping symbol line: %v", err)
			continue
		}
		if ok {
			symbols = append(symbols, sym)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(symbols, func(i, j int) bool { return symbols[i].Address < symbols[j].Address })
	t := &Table{
		symbols: symbols,
		byAddr:  make(map[uint64]int, len(symbols)),
		byName:  make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		if _, dup := t.byAddr[s.Address]; !dup {
			t.byAddr[s.Address] = i
		}
		if _, dup := t.byName[s.Name]; !dup {
			t.byName[s.Name] = i
		}
	}
	log.WithField("symbols", len(symbols)).Debug("Loaded symbol table")
	return t, nil
}

// parseSymbolLine parses "address flags... section size name". ok is false
// for well-formed lines that are not function symbols.
func parseSymbolLine(line string) (sym Symbol, ok bool, err error) {
	fields := strings.Fields(line)
	section := -1
	for i := 1; i < len(fields); i++ {
		if strings.HasPrefix(fields[i], ".") || fields[i] == "*ABS*" || fields[i] == "*UND*" {
			section = i
			break
		}
	}
	if section < 0 || section+1 >= len(fields) {
		return Symbol{}, false, fmt.Errorf("unrecognized format %q", line)
	}
	if fields[section] != textSection {
		return Symbol{}, false, nil
	}
	if section+2 >= len(fields) || fields[section+2] == textSection {
		return Symbol{}, false, nil
	}

	addr, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return Symbol{}, false, fmt.Errorf("bad address %q", fields[0])
	}
	size, err := strconv.ParseUint(fields[section+1], 16, 64)
	if err != nil {
		return Symbol{}, false, fmt.Errorf("bad size %q", fields[section+1])
	}
	return Symbol{Address: addr, Size: size, Name: strings.Join(fields[section+2:], " ")}, true, nil
}
