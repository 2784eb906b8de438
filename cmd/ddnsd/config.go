package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// config is assembled from the environment. A few fields can be overridden
// by flags; see main.go.
type config struct {
	APIToken    string
	ZoneID      string
	RecordName  string
	RecordType  string
	TTL         int
	CachePath   string
	CacheMaxAge time.Duration
	Interval    time.Duration
}

func configFromEnv() (config, error) {
	cfg := config{
		APIToken:    os.Getenv("CLOUDFLARE_API_TOKEN"),
		ZoneID:      os.Getenv("CLOUDFLARE_ZONE_ID"),
		RecordName:  os.Getenv("DNS_RECORD_NAME"),
		RecordType:  env("DNS_RECORD_TYPE", "A"),
		TTL:         envInt("DNS_RECORD_TTL", 1),
		CachePath:   env("DNS_CACHE_FILE", "cache.json"),
		CacheMaxAge: time.Duration(envInt("CACHE_EXPIRY_HOURS", 24)) * time.Hour,
		Interval:    time.Duration(envInt("POLL_INTERVAL_SECONDS", 600)) * time.Second,
	}
	if cfg.ZoneID == "" {
		return cfg, fmt.Errorf("CLOUDFLARE_ZONE_ID environment variable is required")
	}
	if cfg.RecordName == "" {
		return cfg, fmt.Errorf("DNS_RECORD_NAME environment variable is required")
	}
	if !strings.Contains(cfg.RecordName, ".") {
		return cfg, fmt.Errorf("record name %q must have at least one dot", cfg.RecordName)
	}
	return cfg, nil
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

// envInt falls back to the default when the variable is unset or not a number.
func envInt(envvar string, defaultvalue int) int {
	e, found := os.LookupEnv(envvar)
	if !found {
		return defaultvalue
	}
	n, err := strconv.Atoi(e)
	if err != nil {
		return defaultvalue
	}
	return n
}
