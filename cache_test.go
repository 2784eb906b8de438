package ddns_test

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddns "github.com/jmfederico/cloudflare-ddns"
)

var testRef = ddns.RecordRef{Name: "home.example.com", Type: "A", TTL: 1}

func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	fc := ddns.NewFileCache(path, testRef)

	now := time.Now()
	saved := ddns.CacheRecord{
		IP:        netip.MustParseAddr("203.0.113.42"),
		CheckedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, fc.Save(saved))

	loaded, ok := fc.Load()
	require.True(t, ok, "expected a usable cache record")
	assert.Equal(t, saved.IP, loaded.IP)
	assert.WithinDuration(t, saved.CheckedAt, loaded.CheckedAt, time.Second)
	assert.Equal(t, testRef.Name, loaded.RecordName)
	assert.Equal(t, testRef.Type, loaded.RecordType)
}

func TestFileCacheMissingFile(t *testing.T) {
	fc := ddns.NewFileCache(filepath.Join(t.TempDir(), "cache.json"), testRef)
	_, ok := fc.Load()
	assert.False(t, ok)
}

func TestFileCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	fc := ddns.NewFileCache(path, testRef)
	_, ok := fc.Load()
	assert.False(t, ok, "corrupt cache must read as absent, never fatal")
}

func TestFileCacheInvalidAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{"record_name":"home.example.com","record_type":"A","ip":"","checked_at":"2026-01-02T15:04:05Z"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	fc := ddns.NewFileCache(path, testRef)
	_, ok := fc.Load()
	assert.False(t, ok)
}

func TestFileCacheRecordMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	fc := ddns.NewFileCache(path, testRef)
	require.NoError(t, fc.Save(ddns.CacheRecord{
		IP:        netip.MustParseAddr("203.0.113.42"),
		CheckedAt: time.Now(),
	}))

	other := ddns.NewFileCache(path, ddns.RecordRef{Name: "other.example.com", Type: "A", TTL: 1})
	_, ok := other.Load()
	assert.False(t, ok, "a cache written for a different record must not be trusted")
}

func TestFileCacheIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{
		"record_name": "home.example.com",
		"record_type": "A",
		"ip": "203.0.113.42",
		"checked_at": "2026-01-02T15:04:05Z",
		"last_updated": "2026-01-02T15:04:05Z",
		"schema_version": 7,
		"notes": "left by a future release"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	fc := ddns.NewFileCache(path, testRef)
	loaded, ok := fc.Load()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("203.0.113.42"), loaded.IP)
}

func TestFileCacheSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	fc := ddns.NewFileCache(path, testRef)

	for i := 0; i < 3; i++ {
		require.NoError(t, fc.Save(ddns.CacheRecord{
			IP:        netip.MustParseAddr("203.0.113.42"),
			CheckedAt: time.Now(),
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache.json", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCacheRecordExpired(t *testing.T) {
	now := time.Now()
	maxAge := 24 * time.Hour

	fresh := ddns.CacheRecord{CheckedAt: now.Add(-23 * time.Hour)}
	assert.False(t, fresh.Expired(now, maxAge))

	boundary := ddns.CacheRecord{CheckedAt: now.Add(-maxAge)}
	assert.True(t, boundary.Expired(now, maxAge))

	stale := ddns.CacheRecord{CheckedAt: now.Add(-25 * time.Hour)}
	assert.True(t, stale.Expired(now, maxAge))
}
