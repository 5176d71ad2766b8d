package tracedb

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// sidecar is the small JSON file recording what the binary cache blob
// was built from, so New can decide whether to rebuild without paying
// the cost of decoding the blob first.
type sidecar struct {
	Hash string `json:"hash"`
	SDK  string `json:"sdk"`
}

// cachePayload is the CBOR-encoded shape of a DB's tables. Unexported
// DB fields (the logger) are never persisted.
type cachePayload struct {
	TraceMap map[uint64]*ElfString
	EventMap map[string]*ElfString
	FuncTab  []cacheFuncRange
}

type cacheFuncRange struct {
	LowPC, HighPC uint64
	Info          FuncInfo
}

func sidecarPath(dir string) string { return filepath.Join(dir, "trace_db.json") }
func blobPath(dir string) string    { return filepath.Join(dir, "trace_db.cbor") }

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// loadCache returns a DB restored from dir's cache blob if the sidecar
// records a matching ELF hash and SDK fingerprint, and ok is true.
func loadCache(dir, hash, sdk string, logger *log.Logger) (*DB, bool) {
	sideData, err := os.ReadFile(sidecarPath(dir))
	if err != nil {
		return nil, false
	}
	var side sidecar
	if err := json.Unmarshal(sideData, &side); err != nil {
		logger.Printf("cache sidecar corrupt, rebuilding: %v", err)
		return nil, false
	}
	if side.Hash != hash || side.SDK != sdk {
		return nil, false
	}

	blob, err := os.ReadFile(blobPath(dir))
	if err != nil {
		return nil, false
	}
	var payload cachePayload
	if err := cbor.Unmarshal(blob, &payload); err != nil {
		logger.Printf("cache blob corrupt, rebuilding: %v", err)
		return nil, false
	}

	db := &DB{
		traceMap: payload.TraceMap,
		eventMap: payload.EventMap,
		logger:   logger,
	}
	for _, fr := range payload.FuncTab {
		db.funcTab = append(db.funcTab, funcRange{fr.LowPC, fr.HighPC, fr.Info})
	}
	return db, true
}

// saveCache writes db's tables to dir as a CBOR blob plus a JSON
// sidecar recording the hash and SDK fingerprint it was built from.
func saveCache(dir, hash, sdk string, db *DB) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	payload := cachePayload{
		TraceMap: db.traceMap,
		EventMap: db.eventMap,
	}
	for _, fr := range db.funcTab {
		payload.FuncTab = append(payload.FuncTab, cacheFuncRange{fr.lowpc, fr.highpc, fr.info})
	}

	blob, err := cbor.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding cache blob: %w", err)
	}
	if err := os.WriteFile(blobPath(dir), blob, 0o644); err != nil {
		return err
	}

	side, err := json.Marshal(sidecar{Hash: hash, SDK: sdk})
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(dir), side, 0o644)
}
