/*
Package ddns keeps a single DNS record synchronized with the host's current
public IP address.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the name of the record which will be kept current and a [Provider]
implementation for a DNS provider.
Additional client configuration options are listed in the docs for New.

Each call to RunDDNS performs one reconciliation cycle:
resolve the current public IP, compare it against the locally cached
last-synced state, and contact the provider only when the cache is missing,
expired, or disagrees with the resolved address.
*/
package ddns
