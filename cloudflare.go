package ddns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/netip"

	"github.com/cloudflare/cloudflare-go"
)

func newCloudflareProvider(token string, zoneID string) (cf *cloudflareProvider, err error) {
	if zoneID == "" {
		return nil, errors.New("zone ID cannot be empty")
	}
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.zone = cloudflare.ZoneIdentifier(zoneID)
	cf.logger = discard
	return cf, nil
}

// cloudflareProvider implements ddns.Provider.
//
// It should be constructed using newCloudflareProvider.
type cloudflareProvider struct {
	api    *cloudflare.API
	zone   *cloudflare.ResourceContainer
	logger *log.Logger
}

func (cf *cloudflareProvider) FindRecord(ctx context.Context, ref RecordRef) (RemoteRecord, error) {
	cf.logger.Printf("looking up %s records named %q in zone %s...", ref.Type, ref.Name, cf.zone.Identifier)
	records, _, err := cf.api.ListDNSRecords(ctx, cf.zone, cloudflare.ListDNSRecordsParams{
		Type: ref.Type,
		Name: ref.Name,
	})
	if err != nil {
		return RemoteRecord{}, classify(fmt.Errorf("error listing DNS records: %w", err))
	}
	cf.logger.Printf("found %d existing records: %+v", len(records), records)

	if len(records) == 0 {
		return RemoteRecord{}, fmt.Errorf("%w: no %s record named %q in zone %s", ErrNotFound, ref.Type, ref.Name, cf.zone.Identifier)
	}
	if len(records) > 1 {
		return RemoteRecord{}, fmt.Errorf("%w: found %d %s records named %q, expected exactly one", ErrNotFound, len(records), ref.Type, ref.Name)
	}

	addr, err := netip.ParseAddr(records[0].Content)
	if err != nil {
		return RemoteRecord{}, fmt.Errorf("%w: error parsing IP from record content %q: %s", ErrParse, records[0].Content, err)
	}
	return RemoteRecord{ID: records[0].ID, Addr: addr}, nil
}

func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, recordID string, ref RecordRef, addr netip.Addr) error {
	_, err := cf.api.UpdateDNSRecord(ctx, cf.zone, cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    ref.Type,
		Name:    ref.Name,
		Content: addr.String(),
		TTL:     ref.TTL,
	})
	if err != nil {
		return classify(fmt.Errorf("error updating DNS record %s: %w", recordID, err))
	}
	cf.logger.Printf("successfully updated record %s to %s", recordID, addr)
	return nil
}

// classify tags a provider failure with the sentinel the reconciler and the
// surrounding process report on, so that callers can tell a transient
// throttle apart from a bad token without depending on cloudflare-go types.
func classify(err error) error {
	var (
		authentication *cloudflare.AuthenticationError
		authorization  *cloudflare.AuthorizationError
		ratelimit      *cloudflare.RatelimitError
		notFound       *cloudflare.NotFoundError
		request        *cloudflare.RequestError
		service        *cloudflare.ServiceError
	)
	switch {
	case errors.As(err, &authentication), errors.As(err, &authorization):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case errors.As(err, &ratelimit):
		return fmt.Errorf("%w: %w", ErrRateLimit, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.As(err, &request), errors.As(err, &service):
		return fmt.Errorf("%w: %w", ErrProvider, err)
	default:
		// anything else came from the transport, not the API
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}
