package ddns

import (
	"context"
	"net/netip"
)

// RecordRef identifies the DNS record being kept current.
// It is supplied entirely by configuration and never changes for the
// lifetime of a client.
type RecordRef struct {
	Name string
	Type string
	TTL  int
}

// RemoteRecord is the provider's view of the managed record.
type RemoteRecord struct {
	ID   string
	Addr netip.Addr
}

// Resolver determines the host's current public IP address.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// Provider looks up and rewrites a single DNS record at a remote DNS service.
type Provider interface {
	// FindRecord returns the record matching ref in the provider's zone.
	// Zero or more than one match is an error wrapping ErrNotFound.
	FindRecord(ctx context.Context, ref RecordRef) (RemoteRecord, error)

	// UpdateRecord rewrites the record identified by recordID with addr.
	UpdateRecord(ctx context.Context, recordID string, ref RecordRef, addr netip.Addr) error
}

// Cache persists the last state confirmed against the provider between runs.
type Cache interface {
	// Load returns the cached record, reporting false if no usable
	// record exists. A missing or corrupt cache is never an error.
	Load() (CacheRecord, bool)

	Save(CacheRecord) error
}
