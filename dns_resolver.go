package ddns

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DNSResolver constructs a resolver that asks a DNS server what address our
// queries arrive from, by requesting the special whoami.cloudflare TXT record
// in the CHAOS class. Cloudflare's public resolvers answer it with the
// caller's IP. An empty server defaults to 1.1.1.1:53.
//
// Whether the answer is IPv4 or IPv6 depends on which transport the query
// went out over, so hosts with both should pin the server address family.
func DNSResolver(server string) Resolver {
	if server == "" {
		server = "1.1.1.1:53"
	}
	return &dnsResolver{server: server}
}

const whoamiName = "whoami.cloudflare."

type dnsResolver struct {
	server string
}

// Resolve implements ddns.Resolver.
func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(whoamiName, dns.TypeTXT)
	m.Question[0].Qclass = dns.ClassCHAOS

	c := &dns.Client{Timeout: 10 * time.Second}
	in, _, err := c.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: DNS query to %s failed: %w", ErrNetwork, r.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: DNS query to %s answered %s", ErrNetwork, r.server, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok || len(txt.Txt) == 0 {
			continue
		}
		addr, err := netip.ParseAddr(txt.Txt[0])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: error parsing IP from TXT answer %q: %s", ErrParse, txt.Txt[0], err)
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: no TXT answer from %s", ErrParse, r.server)
}
