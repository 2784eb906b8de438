package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that parses an IP from the string addr.
func FromString(addr string) Resolver {
	return stringResolver(addr)
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	addr, err := netip.ParseAddr(string(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: unable to parse IP: %s", ErrParse, err)
	}
	return addr, nil
}
