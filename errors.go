package ddns

import "errors"

// Sentinel errors classifying why a cycle failed.
// Errors returned by this package wrap one of these along with the
// underlying cause; match with [errors.Is].
var (
	// ErrNetwork covers unreachable or timed-out upstreams.
	// Transient - the next scheduled cycle retries.
	ErrNetwork = errors.New("network failure")

	// ErrParse means an upstream responded with something that could not
	// be read as an IP address.
	ErrParse = errors.New("unparseable response")

	// ErrAuth means the provider rejected our credentials or permissions.
	// Retrying will not help until the token is fixed.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound means the configured record name/type matched zero or
	// multiple records in the zone. A configuration problem, not transient.
	ErrNotFound = errors.New("record not found")

	// ErrRateLimit means the provider is throttling us.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrProvider covers any other provider rejection.
	ErrProvider = errors.New("provider error")
)
