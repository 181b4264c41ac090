package asn2ip

import (
	"net/netip"
	"sort"
)

// Networks holds the sorted prefixes one ASN originates, split by address
// family.
type Networks struct {
	IPv4 []netip.Prefix `json:"ipv4"`
	IPv6 []netip.Prefix `json:"ipv6"`
}

// parsePrefixes turns raw response tokens into CIDR prefixes. A token that
// is not a valid prefix fails the whole list with a ValidationError; tokens
// are never silently dropped.
func parsePrefixes(tokens []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(tokens))
	for _, t := range tokens {
		p, err := netip.ParsePrefix(t)
		if err != nil {
			return nil, ValidationError{Value: t, Reason: "not a valid CIDR prefix"}
		}
		prefixes = append(prefixes, p.Masked())
	}
	sortPrefixes(prefixes)
	return prefixes, nil
}

// sortPrefixes orders prefixes ascending by network address, then by prefix
// length.
func sortPrefixes(prefixes []netip.Prefix) {
	sort.Slice(prefixes, func(i, j int) bool {
		if c := prefixes[i].Addr().Compare(prefixes[j].Addr()); c != 0 {
			return c < 0
		}
		return prefixes[i].Bits() < prefixes[j].Bits()
	})
}
