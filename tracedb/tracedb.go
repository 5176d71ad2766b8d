// Package tracedb builds the address-indexed lookup tables a trace
// decoder needs from a target ELF image: the strings embedded by the
// firmware's SWO logging macros, and a function/file/line table derived
// from DWARF debug information.
package tracedb

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// TraceBaseAddr is the virtual address at which the linker places the
// .swo_trace section. SWOSymbol symbol values are absolute addresses and
// are used unchanged as trace_map keys; subtracting TraceBaseAddr gives
// the offset of the record within the section data.
const TraceBaseAddr = 0x60000000

// TraceSectionName is matched against section names with strings.Contains,
// not equality, since the linker may emit more than one .swo_trace* section.
const TraceSectionName = ".swo_trace"

// FuncInfo is the function, source file, and line associated with a
// contiguous range of addresses.
type FuncInfo struct {
	Name string
	File string
	Line int
}

type funcRange struct {
	lowpc, highpc uint64
	info          FuncInfo
}

// DB is a read-only set of lookup tables built from one or more ELF
// images. A DB is safe for concurrent use by multiple goroutines: it
// holds no mutable state after New returns.
type DB struct {
	traceMap map[uint64]*ElfString
	eventMap map[string]*ElfString
	funcTab  []funcRange

	logger *log.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	romSymbolFile string
	extraELFs     []string
	demangle      bool
	cacheDir      string
	logger        *log.Logger
}

// WithROMSymbolFile merges a flat "lowpc size name" symbol listing
// (e.g. a vendor ROM's exported symbol table) into the function map.
func WithROMSymbolFile(path string) Option {
	return func(o *options) { o.romSymbolFile = path }
}

// WithAdditionalELF merges DWARF function info from another ELF image
// (e.g. a ROM build with its own debug info) into the function map.
func WithAdditionalELF(path string) Option {
	return func(o *options) { o.extraELFs = append(o.extraELFs, path) }
}

// WithDemangle runs C++ function names found in DWARF through a
// demangler before storing them. Names from a ROM symbol file are
// stored as written.
func WithDemangle() Option {
	return func(o *options) { o.demangle = true }
}

// WithCacheDir overrides the directory New uses for its persisted
// cache. The zero value disables caching.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithLogger overrides the *log.Logger used for non-fatal warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a DB from elfPath. It returns an error only when the ELF
// cannot be opened, its .swo_trace section or symbol table cannot be
// read, or it has no .swo_trace section; all other problems
// (a symbol with no DWARF match, a malformed ElfString) are logged and
// skipped.
func New(elfPath string, opts ...Option) (*DB, error) {
	o := options{cacheDir: defaultCacheDir()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(os.Stderr, "tracedb: ", log.LstdFlags)
	}

	hash, err := hashFile(elfPath)
	if err != nil {
		return nil, fmt.Errorf("tracedb: hashing %s: %w", elfPath, err)
	}

	if o.cacheDir != "" {
		if db, ok := loadCache(o.cacheDir, hash, sdkFingerprint(o), o.logger); ok {
			return db, nil
		}
	}

	db := &DB{
		traceMap: make(map[uint64]*ElfString),
		eventMap: make(map[string]*ElfString),
		logger:   o.logger,
	}

	f, err := elf.Open(elfPath)
	if err != nil {
		return nil, fmt.Errorf("tracedb: opening %s: %w", elfPath, err)
	}
	defer f.Close()

	if err := db.loadSWOTrace(f); err != nil {
		return nil, err
	}
	db.loadFunctions(f, elfPath, o.demangle)

	for _, extra := range o.extraELFs {
		ef, err := elf.Open(extra)
		if err != nil {
			o.logger.Printf("skipping additional ELF %s: %v", extra, err)
			continue
		}
		db.loadFunctions(ef, extra, o.demangle)
		ef.Close()
	}

	if o.romSymbolFile != "" {
		if err := db.loadROMSymbols(o.romSymbolFile); err != nil {
			o.logger.Printf("skipping ROM symbol file %s: %v", o.romSymbolFile, err)
		}
	}

	sort.Sort(funcRangeSorter(db.funcTab))

	if o.cacheDir != "" {
		if err := saveCache(o.cacheDir, hash, sdkFingerprint(o), db); err != nil {
			o.logger.Printf("not caching trace db: %v", err)
		}
	}

	return db, nil
}

// loadSWOTrace walks the ELF's symbol table for SWOSymbol entries
// inside the .swo_trace section and parses each one as an ElfString,
// filing it into the trace map or event map.
func (db *DB) loadSWOTrace(f *elf.File) error {
	var traceSec *elf.Section
	for _, sec := range f.Sections {
		if strings.Contains(sec.Name, TraceSectionName) {
			traceSec = sec
			break
		}
	}
	if traceSec == nil {
		return fmt.Errorf("tracedb: no %s section found; check the linker script enables at least one trace module and level", TraceSectionName)
	}

	data, err := traceSec.Data()
	if err != nil {
		return fmt.Errorf("tracedb: reading %s section: %w", TraceSectionName, err)
	}

	syms, err := f.Symbols()
	if err != nil {
		return fmt.Errorf("tracedb: reading symbol table: %w", err)
	}

	for _, sym := range syms {
		if sym.Value&TraceBaseAddr != TraceBaseAddr {
			continue
		}
		if !strings.Contains(sym.Name, "SWOSymbol") {
			continue
		}

		offset := sym.Value - TraceBaseAddr
		if offset >= uint64(len(data)) {
			db.logger.Printf("SWOSymbol %s offset %#x out of range of %s", sym.Name, offset, TraceSectionName)
			continue
		}
		raw := data[offset:]
		if nul := strings.IndexByte(string(raw), 0); nul >= 0 {
			raw = raw[:nul]
		}
		value := strings.ReplaceAll(string(raw), "\"", "")

		es, err := ParseElfString(value)
		if err != nil {
			db.logger.Printf("%s: %v", sym.Name, err)
			continue
		}

		if es.Opcode == EventCreation {
			db.eventMap[es.Module+es.Event] = es
		} else {
			db.traceMap[sym.Value] = es
		}
	}

	return nil
}

// loadFunctions walks f's DWARF compile units for DW_TAG_subprogram
// entries and adds each to the function table. An address-class high_pc
// is taken as absolute; a constant-class high_pc is an offset from
// low_pc.
func (db *DB) loadFunctions(f *elf.File, path string, demangleNames bool) {
	if f.Section(".debug_info") == nil {
		db.logger.Printf("%s has no DWARF info; function map will be incomplete", path)
		return
	}
	dwarff, err := f.DWARF()
	if err != nil {
		db.logger.Printf("%s: loading DWARF: %v", path, err)
		return
	}

	r := dwarff.Reader()
	for {
		ent, err := r.Next()
		if ent == nil || err != nil {
			break
		}
		if ent.Tag != dwarf.TagSubprogram {
			continue
		}
		r.SkipChildren()

		name, ok := ent.Val(dwarf.AttrName).(string)
		if !ok {
			continue
		}
		lowpc, ok := ent.Val(dwarf.AttrLowpc).(uint64)
		if !ok {
			continue
		}

		var highpc uint64
		switch v := ent.Val(dwarf.AttrHighpc).(type) {
		case uint64:
			highpc = v
		case int64:
			highpc = lowpc + uint64(v)
		default:
			continue
		}

		fileIdx, ok := ent.Val(dwarf.AttrDeclFile).(int64)
		if !ok {
			continue
		}
		lr, err := dwarff.LineReader(ent)
		file := "<unknown>"
		if err == nil && lr != nil {
			files := lr.Files()
			if int(fileIdx) < len(files) && files[fileIdx] != nil {
				file = files[fileIdx].Name
			}
		}
		line, _ := ent.Val(dwarf.AttrDeclLine).(int64)

		if demangleNames {
			if d, err := demangle.ToString(name, demangle.NoParams); err == nil {
				name = d
			}
		}

		db.funcTab = append(db.funcTab, funcRange{lowpc, highpc, FuncInfo{name, file, int(line)}})
	}
}

// loadROMSymbols parses a "lowpc size name" flat symbol listing, one
// entry per line, and merges it into the function table as the range
// [lowpc, lowpc+size). Numbers are parsed with base 0 so either decimal
// or 0x-prefixed hex is accepted.
func (db *DB) loadROMSymbols(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		lowpc, err := strconv.ParseUint(fields[0], 0, 64)
		if err != nil {
			continue
		}
		width, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			continue
		}
		db.funcTab = append(db.funcTab, funcRange{
			lowpc:  lowpc,
			highpc: lowpc + width,
			info:   FuncInfo{Name: fields[2], File: "<ROM>", Line: 0},
		})
	}
	return nil
}

type funcRangeSorter []funcRange

func (s funcRangeSorter) Len() int           { return len(s) }
func (s funcRangeSorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s funcRangeSorter) Less(i, j int) bool { return s[i].lowpc < s[j].lowpc }

// ElfString looks up the raw trace record registered at addr.
// The second result is false if addr has no entry in the trace map.
func (db *DB) ElfString(addr uint64) (*ElfString, bool) {
	es, ok := db.traceMap[addr]
	return es, ok
}

// EventString looks up an event creation by its module||event key, as
// referenced from an Event record's string field.
func (db *DB) EventString(key string) (*ElfString, bool) {
	es, ok := db.eventMap[key]
	return es, ok
}

// InfoForAddress returns the function, file, and line whose range
// contains addr. ok is false when addr falls outside every known
// range (e.g. an address in ROM with no symbol information loaded).
func (db *DB) InfoForAddress(addr uint64) (info FuncInfo, ok bool) {
	i := sort.Search(len(db.funcTab), func(i int) bool {
		return addr < db.funcTab[i].highpc
	})
	if i < len(db.funcTab) && db.funcTab[i].lowpc <= addr && addr < db.funcTab[i].highpc {
		return db.funcTab[i].info, true
	}
	return FuncInfo{}, false
}

// FuncRange is a caller-supplied (address range, FuncInfo) pair, used
// by NewFromTables.
type FuncRange struct {
	LowPC, HighPC uint64
	Info          FuncInfo
}

// NewFromTables builds a DB directly from pre-built tables, bypassing
// ELF and DWARF parsing entirely. It exists for tests and for callers
// that already have trace metadata from another source (for example, a
// build step that emits the same tables as a side artifact).
func NewFromTables(trace map[uint64]*ElfString, events map[string]*ElfString, funcs []FuncRange) *DB {
	db := &DB{
		traceMap: trace,
		eventMap: events,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, fr := range funcs {
		db.funcTab = append(db.funcTab, funcRange{fr.LowPC, fr.HighPC, fr.Info})
	}
	sort.Sort(funcRangeSorter(db.funcTab))
	return db
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "swotrace")
}

func sdkFingerprint(o options) string {
	return o.romSymbolFile + "|" + strings.Join(o.extraELFs, "|")
}
