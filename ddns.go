package ddns

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

// DefaultResolver queries a handful of public address-reflection services
// and requires two of them to agree before trusting the result.
var DefaultResolver = WebResolver(
	"https://api.ipify.org?format=json",
	"https://icanhazip.com/",
	"https://ipinfo.io/ip",
)

// DefaultCachePath is where the file cache lives when no other location is configured.
const DefaultCachePath = "cache.json"

// DefaultCacheMaxAge is how long a cache entry is trusted before the
// provider is consulted again even for an unchanged IP.
const DefaultCacheMaxAge = 24 * time.Hour

// providerTimeout bounds each individual DNS provider call.
const providerTimeout = 30 * time.Second

var discard = log.New(io.Discard, "", log.LstdFlags)

// Outcome reports how a reconciliation cycle ended.
type Outcome int

const (
	// Failed means the cycle aborted; the accompanying error says where.
	Failed Outcome = iota
	// Skipped means the cache was fresh and the resolved IP unchanged,
	// so the provider was never contacted.
	Skipped
	// NoChange means the provider already held the resolved IP;
	// only the cache expiry window was refreshed.
	NoChange
	// Updated means the provider record was rewritten with a new IP.
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped (cache hit, IP unchanged)"
	case NoChange:
		return "no change needed"
	case Updated:
		return "updated"
	default:
		return "failed"
	}
}

// New returns a DDNSClient which keeps the named DNS record pointed at the
// host's current public IP address.
func New(recordName string, options ...clientOption) (DDNSClient, error) {
	if recordName == "" {
		return nil, fmt.Errorf("ddns.New: record name cannot be empty")
	}
	c := &client{
		ref:         RecordRef{Name: recordName, Type: "A", TTL: 1},
		cacheMaxAge: DefaultCacheMaxAge,
		now:         time.Now,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingCloudflare or similar")
	}
	if c.Resolver == nil {
		c.Resolver = DefaultResolver
	}
	if c.Cache == nil {
		if c.cachePath == "" {
			c.cachePath = DefaultCachePath
		}
		c.Cache = NewFileCache(c.cachePath, c.ref)
	}

	// this lets us propagate the logger to dependencies that use one if WithLogger was called before all of the dependencies were registered
	withLogger(c.logger)(c)
	return c, nil
}

type clientOption func(*client) error

// UsingCloudflare registers a Cloudflare DNS provider which manages the
// record inside the zone identified by zoneID, authenticated with an API token.
func UsingCloudflare(token string, zoneID string) clientOption {
	return func(c *client) (err error) {
		if c.Provider, err = newCloudflareProvider(token, zoneID); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers any Provider implementation,
// which is also how test doubles are injected.
func UsingProvider(provider Provider) clientOption {
	return func(c *client) error {
		if provider == nil {
			return fmt.Errorf("provider cannot be nil")
		}
		c.Provider = provider
		return nil
	}
}

func UsingResolver(resolver Resolver) clientOption {
	return func(c *client) error {
		if resolver == nil {
			resolver = DefaultResolver
		}
		c.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *client) error {
		c.Resolver = WebResolver(serviceURL...)
		return nil
	}
}

// UsingDNSResolver swaps in a resolver that learns the public IP from a DNS
// server instead of an HTTPS reflection service. See DNSResolver.
func UsingDNSResolver(server string) clientOption {
	return func(c *client) error {
		c.Resolver = DNSResolver(server)
		return nil
	}
}

// WithRecordType sets the managed record's type. The default is "A".
func WithRecordType(recordType string) clientOption {
	return func(c *client) error {
		recordType = strings.ToUpper(strings.TrimSpace(recordType))
		if recordType == "" {
			return fmt.Errorf("record type cannot be empty")
		}
		c.ref.Type = recordType
		return nil
	}
}

// WithTTL sets the TTL written on record updates.
// The default of 1 means "automatic" to Cloudflare.
func WithTTL(ttl int) clientOption {
	return func(c *client) error {
		if ttl < 1 {
			return fmt.Errorf("ttl must be at least 1, got %d", ttl)
		}
		c.ref.TTL = ttl
		return nil
	}
}

// WithCache registers a Cache implementation, replacing the default file cache.
func WithCache(cache Cache) clientOption {
	return func(c *client) error {
		if cache == nil {
			return fmt.Errorf("cache cannot be nil")
		}
		c.Cache = cache
		return nil
	}
}

// WithCacheFile sets the path of the default file cache.
func WithCacheFile(path string) clientOption {
	return func(c *client) error {
		if path == "" {
			return fmt.Errorf("cache path cannot be empty")
		}
		c.cachePath = path
		return nil
	}
}

// WithCacheMaxAge sets how long a cache entry is trusted before the provider
// is consulted again even when the resolved IP matches.
func WithCacheMaxAge(maxAge time.Duration) clientOption {
	return func(c *client) error {
		if maxAge <= 0 {
			return fmt.Errorf("cache max age must be positive, got %s", maxAge)
		}
		c.cacheMaxAge = maxAge
		return nil
	}
}

func withLogger(logger *log.Logger) clientOption {
	return func(c *client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		type setLogger interface {
			SetLogger(*log.Logger)
		}

		switch p := c.Provider.(type) {
		case *cloudflareProvider:
			p.logger = logger
		case setLogger:
			p.SetLogger(logger)
		}

		switch r := c.Resolver.(type) {
		case setLogger:
			r.SetLogger(logger)
		}

		return nil
	}
}

func WithLogger(logger *log.Logger) clientOption {
	return func(c *client) error {
		c.logger = logger
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		switch hc := c.Resolver.(type) {
		case *webResolver:
			hc.httpClient = httpclient
		case setHTTPClient:
			hc.SetHTTPClient(httpclient)
		}
		switch p := c.Provider.(type) {
		case *cloudflareProvider:
			cloudflare.HTTPClient(httpclient)(p.api)
		case setHTTPClient:
			p.SetHTTPClient(httpclient)
		}
		return nil
	}
}

type DDNSClient interface {
	// RunDDNS performs one reconciliation cycle to completion.
	// The Outcome is only meaningful when the error is nil.
	RunDDNS(ctx context.Context) (Outcome, error)
}

type client struct {
	Resolver
	Provider
	Cache
	logger      *log.Logger
	ref         RecordRef
	cachePath   string
	cacheMaxAge time.Duration
	now         func() time.Time
}

// RunDDNS resolves the current public IP and brings the remote record in
// line with it, consulting the provider only when the local cache cannot
// prove the record is already correct.
func (c *client) RunDDNS(ctx context.Context) (Outcome, error) {
	addr, err := c.Resolve(ctx)
	if err != nil {
		return Failed, fmt.Errorf("error resolving current IP: %w", err)
	}
	c.logger.Printf("resolved current IP: %s", addr)
	if rt := recordType(addr); rt != c.ref.Type && (c.ref.Type == "A" || c.ref.Type == "AAAA") {
		c.logger.Printf("warning: resolved IP %s is a %s address but the configured record type is %s", addr, rt, c.ref.Type)
	}

	now := c.now()
	cached, ok := c.Load()
	switch {
	case !ok:
		c.logger.Printf("no usable cache, checking provider")
	case cached.Expired(now, c.cacheMaxAge):
		c.logger.Printf("cache expired (last checked %s), checking provider", cached.CheckedAt.Format(time.RFC3339))
	case cached.IP == addr:
		c.logger.Printf("cache hit: IP %s unchanged, skipping provider check (last checked %s)", addr, cached.CheckedAt.Format(time.RFC3339))
		return Skipped, nil
	default:
		// A fresh cache with a different IP is not trusted blindly:
		// it records the last synced state, not the current remote truth.
		c.logger.Printf("IP changed: %s -> %s, checking provider", cached.IP, addr)
	}

	// bound each provider call so a hung upstream cannot wedge the cycle
	findCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	remote, err := c.FindRecord(findCtx, c.ref)
	cancel()
	if err != nil {
		return Failed, fmt.Errorf("error looking up %s record %q: %w", c.ref.Type, c.ref.Name, err)
	}
	c.logger.Printf("provider has %s -> %s (record %s)", c.ref.Name, remote.Addr, remote.ID)

	rec := CacheRecord{IP: addr, CheckedAt: now, UpdatedAt: cached.UpdatedAt}
	if remote.Addr == addr {
		c.logger.Printf("record is already up to date")
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		if err := c.Save(rec); err != nil {
			c.logger.Printf("warning: record is current but the cache could not be saved: %s", err)
		}
		return NoChange, nil
	}

	c.logger.Printf("updating record %s from %s to %s...", remote.ID, remote.Addr, addr)
	updateCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	if err := c.UpdateRecord(updateCtx, remote.ID, c.ref, addr); err != nil {
		// The cache is left untouched so the next cycle retries the update
		// instead of believing it succeeded.
		return Failed, fmt.Errorf("error updating %s record %q to %s: %w", c.ref.Type, c.ref.Name, addr, err)
	}
	c.logger.Printf("successfully updated %s to %s", c.ref.Name, addr)

	rec.UpdatedAt = now
	if err := c.Save(rec); err != nil {
		// The remote record is already correct; the worst case is one
		// extra provider check next cycle.
		c.logger.Printf("warning: record updated but the cache could not be saved: %s", err)
	}
	return Updated, nil
}

func recordType(a netip.Addr) string {
	if a.Is4() {
		return "A"
	}
	return "AAAA"
}

type logf interface {
	Printf(string, ...any)
}

// RunDaemon starts ddnsClient as a goroutine.
//
// A nil logger for the DDNSClient supplied by this library indicates that the daemon should send logs to the logger configured in the client.
// Otherwise the default is to discard log messages.
func RunDaemon(ddnsClient DDNSClient, ctx context.Context, interval time.Duration, logger logf) {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	if logger == nil {
		if c, ok := ddnsClient.(*client); ok && c.logger != nil {
			logger = c.logger
		} else {
			logger = discard
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				outcome, err := ddnsClient.RunDDNS(ctx)
				if err != nil {
					logger.Printf("ddns.RunDaemon: %s", err)
					continue
				}
				logger.Printf("ddns.RunDaemon: cycle finished: %s", outcome)
			}
		}
	}()
}
