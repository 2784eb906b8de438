package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("CLOUDFLARE_API_TOKEN", "test-token")
	t.Setenv("CLOUDFLARE_ZONE_ID", "zone123")
	t.Setenv("DNS_RECORD_NAME", "home.example.com")
}

func TestConfigFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DNS_RECORD_TYPE", "AAAA")
	t.Setenv("DNS_RECORD_TTL", "300")
	t.Setenv("DNS_CACHE_FILE", "/var/lib/ddns/cache.json")
	t.Setenv("CACHE_EXPIRY_HOURS", "6")
	t.Setenv("POLL_INTERVAL_SECONDS", "120")

	cfg, err := configFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "test-token", cfg.APIToken)
	assert.Equal(t, "zone123", cfg.ZoneID)
	assert.Equal(t, "home.example.com", cfg.RecordName)
	assert.Equal(t, "AAAA", cfg.RecordType)
	assert.Equal(t, 300, cfg.TTL)
	assert.Equal(t, "/var/lib/ddns/cache.json", cfg.CachePath)
	assert.Equal(t, 6*time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 2*time.Minute, cfg.Interval)
}

func TestConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := configFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "A", cfg.RecordType)
	assert.Equal(t, 1, cfg.TTL, "TTL 1 means provider-automatic")
	assert.Equal(t, "cache.json", cfg.CachePath)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 600*time.Second, cfg.Interval)
}

func TestConfigRequiredFields(t *testing.T) {
	t.Setenv("CLOUDFLARE_ZONE_ID", "")
	t.Setenv("DNS_RECORD_NAME", "home.example.com")
	_, err := configFromEnv()
	assert.ErrorContains(t, err, "CLOUDFLARE_ZONE_ID")

	t.Setenv("CLOUDFLARE_ZONE_ID", "zone123")
	t.Setenv("DNS_RECORD_NAME", "")
	_, err = configFromEnv()
	assert.ErrorContains(t, err, "DNS_RECORD_NAME")
}

func TestConfigRecordNameNeedsDot(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DNS_RECORD_NAME", "localhost")

	_, err := configFromEnv()
	assert.ErrorContains(t, err, "dot")
}

func TestConfigBadNumbersFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DNS_RECORD_TTL", "not-a-number")
	t.Setenv("CACHE_EXPIRY_HOURS", "soon")
	t.Setenv("POLL_INTERVAL_SECONDS", "")

	cfg, err := configFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.TTL)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 600*time.Second, cfg.Interval)
}
