package ddns

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"
)

// CacheRecord is the last record state confirmed against the DNS provider.
//
// CheckedAt is the time of the last provider check (or skipped check that
// confirmed nothing changed); UpdatedAt is the time of the last applied
// remote update. The record name and type are stored so that a cache file
// written for a different configured record is not trusted.
type CacheRecord struct {
	RecordName string     `json:"record_name"`
	RecordType string     `json:"record_type"`
	IP         netip.Addr `json:"ip"`
	CheckedAt  time.Time  `json:"checked_at"`
	UpdatedAt  time.Time  `json:"last_updated"`
}

// Expired reports whether the record's last check is at least maxAge old.
func (r CacheRecord) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.CheckedAt) >= maxAge
}

// NewFileCache returns a Cache backed by a JSON file at path.
// Records loaded from the file are only trusted when they were written for ref.
func NewFileCache(path string, ref RecordRef) *FileCache {
	return &FileCache{path: path, ref: ref}
}

// FileCache stores the last-synced record state in a small JSON file.
//
// It assumes a single-instance deployment: one process owns the file and no
// concurrent writers exist.
type FileCache struct {
	path string
	ref  RecordRef
}

// Load implements ddns.Cache.
//
// A missing, unreadable, or corrupt file - or one written for a different
// record - reports false rather than an error, forcing a provider check.
func (fc *FileCache) Load() (CacheRecord, bool) {
	b, err := os.ReadFile(fc.path)
	if err != nil {
		return CacheRecord{}, false
	}
	var rec CacheRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return CacheRecord{}, false
	}
	if rec.RecordName != fc.ref.Name || rec.RecordType != fc.ref.Type {
		return CacheRecord{}, false
	}
	if !rec.IP.IsValid() {
		return CacheRecord{}, false
	}
	return rec, true
}

// Save implements ddns.Cache.
//
// The record is written to a temp file in the same directory and renamed
// into place, so a crash mid-write leaves either the old file or the new
// one, never a torn write.
func (fc *FileCache) Save(rec CacheRecord) error {
	rec.RecordName = fc.ref.Name
	rec.RecordType = fc.ref.Type

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding cache record: %w", err)
	}

	dir := filepath.Dir(fc.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(fc.path)+".tmp-")
	if err != nil {
		return fmt.Errorf("error creating temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("error setting cache file permissions: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fc.path); err != nil {
		return fmt.Errorf("error replacing cache file: %w", err)
	}
	return nil
}
