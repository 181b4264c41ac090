package asn2ip

import (
	"fmt"
	"strings"
	"time"

	syslog "github.com/RackSec/srslog"
)

// Syslog wraps a Fetcher and logs every resolution to syslog. Failures to
// log never fail a fetch.
type Syslog struct {
	fetcher Fetcher
	writer  *syslog.Writer
	opt     SyslogOptions
}

var _ Fetcher = (*Syslog)(nil)

type SyslogOptions struct {
	// "udp", "tcp", "unix". Defaults to "udp"
	Network string

	// Remote address, defaults to local syslog server
	Address string

	// Priority value as per https://pkg.go.dev/log/syslog#Priority
	Priority int

	// Syslog tag
	Tag string
}

// NewSyslog returns a Fetcher that forwards to the given one and writes one
// syslog line per resolved ASN.
func NewSyslog(fetcher Fetcher, opt SyslogOptions) *Syslog {
	writer, err := syslog.Dial(opt.Network, opt.Address, syslog.Priority(opt.Priority), opt.Tag)
	if err != nil {
		// Log any error but don't block if this fails
		Log.WithError(err).Error("failed to initialize syslog")
	}
	return &Syslog{
		fetcher: fetcher,
		writer:  writer,
		opt:     opt,
	}
}

func (s *Syslog) Fetch(asns ...string) (map[string]*Networks, error) {
	start := time.Now()
	result, err := s.fetcher.Fetch(asns...)
	if s.writer == nil {
		return result, err
	}
	elapsed := time.Since(start)
	if err != nil {
		msg := fmt.Sprintf("type=error asn=%s duration=%s error=%q", strings.Join(asns, ","), elapsed, err)
		if _, werr := s.writer.Write([]byte(msg)); werr != nil {
			Log.WithError(werr).Error("failed to send syslog")
		}
		return result, err
	}
	for asn, nets := range result {
		msg := fmt.Sprintf("type=result asn=%s ipv4=%d ipv6=%d duration=%s", asn, len(nets.IPv4), len(nets.IPv6), elapsed)
		if _, werr := s.writer.Write([]byte(msg)); werr != nil {
			Log.WithError(werr).Error("failed to send syslog")
		}
	}
	return result, nil
}

func (s *Syslog) String() string {
	return "Syslog"
}
