package asn2ip

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/maxminddb-golang"
)

// MMDB answers ASN queries from a local MaxMind GeoLite2-ASN style database
// file instead of a routing registry. The database maps networks to their
// originating ASN; the index is inverted once at open time.
type MMDB struct {
	file     string
	networks map[ASN]*Networks
}

var _ Fetcher = (*MMDB)(nil)

// OpenMMDB loads an ASN database file and builds the per-ASN prefix index.
func OpenMMDB(file string) (*MMDB, error) {
	reader, err := maxminddb.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open asn database file: %w", err)
	}
	defer reader.Close()

	m := &MMDB{
		file:     file,
		networks: make(map[ASN]*Networks),
	}
	it := reader.Networks(maxminddb.SkipAliasedNetworks)
	for it.Next() {
		var record struct {
			ASN uint64 `maxminddb:"autonomous_system_number"`
		}
		subnet, err := it.Network(&record)
		if err != nil {
			return nil, fmt.Errorf("failed to read asn database file: %w", err)
		}
		if record.ASN == 0 {
			continue
		}
		prefix, ok := prefixFromIPNet(subnet)
		if !ok {
			continue
		}
		asn := ASN(fmt.Sprintf("AS%d", record.ASN))
		nets, ok := m.networks[asn]
		if !ok {
			nets = &Networks{IPv4: []netip.Prefix{}, IPv6: []netip.Prefix{}}
			m.networks[asn] = nets
		}
		if prefix.Addr().Is4() {
			nets.IPv4 = append(nets.IPv4, prefix)
		} else {
			nets.IPv6 = append(nets.IPv6, prefix)
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to read asn database file: %w", err)
	}
	for _, nets := range m.networks {
		sortPrefixes(nets.IPv4)
		sortPrefixes(nets.IPv6)
	}
	return m, nil
}

// Fetch returns the indexed networks for a batch of ASNs. ASNs without an
// entry in the database resolve to empty prefix lists.
func (m *MMDB) Fetch(asns ...string) (map[string]*Networks, error) {
	result := make(map[string]*Networks)
	if len(asns) == 0 {
		return result, nil
	}
	normalized, err := NormalizeASNs(asns)
	if err != nil {
		return nil, err
	}
	for _, asn := range normalized {
		if nets, ok := m.networks[asn]; ok {
			result[string(asn)] = nets
		} else {
			result[string(asn)] = &Networks{IPv4: []netip.Prefix{}, IPv6: []netip.Prefix{}}
		}
	}
	return result, nil
}

func (m *MMDB) String() string {
	return "MMDB(" + m.file + ")"
}

func prefixFromIPNet(n *net.IPNet) (netip.Prefix, bool) {
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}, false
	}
	ones, _ := n.Mask.Size()
	// GeoLite2 databases store IPv4 under the v4-mapped IPv6 range.
	if addr.Is4In6() {
		addr = addr.Unmap()
		ones -= 96
	}
	if ones < 0 || ones > addr.BitLen() {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr, ones), true
}
