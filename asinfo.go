package asn2ip

import (
	"errors"
	"strings"

	"github.com/miekg/dns"
)

// asnZone is the Team Cymru zone answering ASN metadata queries over DNS.
const asnZone = ".asn.cymru.com."

// ErrASNotFound is returned when the registration database has no record
// for an ASN.
var ErrASNotFound = errors.New("no registration record for ASN")

// ASInfo is the registration metadata of an ASN.
type ASInfo struct {
	ASN       ASN    `json:"asn"`
	Country   string `json:"country"`
	Registry  string `json:"registry"`
	Allocated string `json:"allocated"`
	Name      string `json:"name"`
}

// LookupASInfo returns the registration metadata for an ASN by querying the
// Team Cymru DNS zone. The dnsAddr is the host:port of the DNS server to
// ask, e.g. "1.1.1.1:53".
func LookupASInfo(asn ASN, dnsAddr string) (*ASInfo, error) {
	m := new(dns.Msg)
	m.SetQuestion("AS"+asn.Number()+asnZone, dns.TypeTXT)

	c := new(dns.Client)
	in, _, err := c.Exchange(m, dnsAddr)
	if err != nil {
		return nil, NetworkError{Op: "dns query", Addr: dnsAddr, Err: err}
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, ErrASNotFound
	}
	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok || len(txt.Txt) == 0 {
			continue
		}
		return parseASInfo(asn, strings.Join(txt.Txt, ""))
	}
	return nil, ErrASNotFound
}

// parseASInfo decodes a Cymru TXT record of the form
// "2906 | US | arin | 2011-02-02 | NETFLIX-ASN, US".
func parseASInfo(asn ASN, record string) (*ASInfo, error) {
	fields := strings.Split(record, "|")
	if len(fields) < 5 {
		return nil, ValidationError{Value: record, Reason: "malformed registration record"}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return &ASInfo{
		ASN:       asn,
		Country:   fields[1],
		Registry:  fields[2],
		Allocated: fields[3],
		Name:      fields[4],
	}, nil
}
