package asn2ip

import (
	"regexp"
	"strings"
)

// ASN is an Autonomous System Number in its canonical form "AS" followed by
// decimal digits, e.g. "AS2906".
type ASN string

var reASN = regexp.MustCompile(`^([Aa][Ss])?(\d+)$`)

// Number returns the decimal part of the ASN without the "AS" prefix.
func (a ASN) Number() string {
	return strings.TrimPrefix(string(a), "AS")
}

func (a ASN) String() string { return string(a) }

// Family is the IP address family of a query.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// cmd returns the registry command verb that requests routes for this family.
func (f Family) cmd() string {
	if f == IPv6 {
		return "!6"
	}
	return "!g"
}

// NormalizeASN canonicalizes a single ASN. Accepted inputs are decimal digits
// with an optional case-insensitive "AS" prefix, so "2906", "as2906" and
// "AS2906" are equivalent.
func NormalizeASN(s string) (ASN, error) {
	m := reASN.FindStringSubmatch(s)
	if m == nil {
		return "", ValidationError{Value: s, Reason: "not a valid AS number"}
	}
	return ASN("AS" + m[2]), nil
}

// NormalizeASNs canonicalizes a list of ASNs. A single invalid element fails
// the whole operation without partial results. An empty input is not an
// error and yields an empty list.
func NormalizeASNs(asns []string) ([]ASN, error) {
	normalized := make([]ASN, 0, len(asns))
	for _, s := range asns {
		asn, err := NormalizeASN(s)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, asn)
	}
	return normalized, nil
}
