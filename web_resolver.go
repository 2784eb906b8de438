package ddns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with the body holding either a bare IPv4 or IPv6 address or a JSON object
// with an "ip" field (both forms appear among the common public services).
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// The recommended approach is to run your own service over https.
func WebResolver(serviceURL ...string) Resolver {
	return &webResolver{services: serviceURL}
}

type webResolver struct {
	httpClient *http.Client
	services   []string
}

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.services) == 0 {
		return netip.Addr{}, errors.New("no external IP lookup services were provided")
	}
	if len(wr.services) == 1 {
		return wr.lookup(ctx, wr.services[0])
	}

	// With multiple services configured, call out to up to three of them and
	// only accept the result once two non-error responses agree.
	// This is safer from accidental caching and from a single compromised
	// service returning malicious results (assuming all services are https).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := 3
	if len(wr.services) < useCount {
		useCount = len(wr.services)
	}
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		service := wr.services[i%len(wr.services)]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, service)

			select {
			case results <- r:
			default:
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	resultCount := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		resultCount++ // don't increase the result count for errors
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
	}
	if resultCount < 2 {
		return netip.Addr{}, fmt.Errorf("%w: not enough resolvers responded without errors: %w", ErrNetwork, errors.Join(errs...))
	}

	return netip.Addr{}, fmt.Errorf("%w: IP resolvers did not agree on our IP", ErrNetwork)
}

func (wr *webResolver) lookup(ctx context.Context, service string) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the user supplied context.TODO or context.Background
	// using http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: http request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return netip.Addr{}, fmt.Errorf("%w: http request returned %s", ErrNetwork, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: error reading response body: %w", ErrNetwork, err)
	}
	return parseAddrBody(body)
}

// parseAddrBody accepts either a bare address ("203.0.113.42\n") or a JSON
// object with an "ip" field, e.g. api.ipify.org?format=json.
func parseAddrBody(body []byte) (netip.Addr, error) {
	s := strings.TrimSpace(string(body))
	if strings.HasPrefix(s, "{") {
		var payload struct {
			IP string `json:"ip"`
		}
		if err := json.Unmarshal([]byte(s), &payload); err != nil {
			return netip.Addr{}, fmt.Errorf("%w: error decoding JSON response body: %s", ErrParse, err)
		}
		s = payload.IP
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: error parsing IP address from response body: %s", ErrParse, err)
	}
	return addr, nil
}
