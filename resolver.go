package asn2ip

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxSessions bounds the number of registry sessions one Resolver
// keeps open concurrently.
const DefaultMaxSessions = 16

// Fetcher maps a batch of ASNs to the networks they originate.
type Fetcher interface {
	Fetch(asns ...string) (map[string]*Networks, error)
}

// SessionLimiter bounds the number of registry sessions open at the same
// time. Resolvers that share a limiter share the bound.
type SessionLimiter struct {
	sem *semaphore.Weighted
}

// NewSessionLimiter returns a limiter for at most max concurrent sessions,
// DefaultMaxSessions if max is 0.
func NewSessionLimiter(max int64) *SessionLimiter {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &SessionLimiter{sem: semaphore.NewWeighted(max)}
}

func (l *SessionLimiter) acquire() {
	// Block until a session slot frees up. There is no cancellation
	// primitive for in-flight registry work, so none is offered here.
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *SessionLimiter) release() {
	l.sem.Release(1)
}

// Resolver answers ASN queries from a routing registry, optionally backed
// by a cache. It is safe for concurrent use; every batch gets its own
// registry session, bounded by the session limiter.
type Resolver struct {
	opt     ResolverOptions
	limiter *SessionLimiter
}

type ResolverOptions struct {
	// Registry host and port, e.g. "whois.radb.net" and 43.
	Server string
	Port   int

	// Address families to query.
	IPv4 bool
	IPv6 bool

	// Connect/read/write timeout per session, default DefaultTimeout.
	Timeout time.Duration

	// Optional result cache. Cache failures degrade to registry lookups.
	Cache *Cache

	// Max concurrent registry sessions, default DefaultMaxSessions. A batch
	// that needs the registry blocks until a slot is free. Ignored when
	// Limiter is set.
	MaxSessions int64

	// Limiter shared with other resolvers to bound their combined session
	// count. When nil the resolver gets its own limiter of MaxSessions.
	Limiter *SessionLimiter
}

var _ Fetcher = (*Resolver)(nil)

// NewResolver returns a new registry-backed Fetcher.
func NewResolver(opt ResolverOptions) *Resolver {
	if opt.Timeout == 0 {
		opt.Timeout = DefaultTimeout
	}
	limiter := opt.Limiter
	if limiter == nil {
		limiter = NewSessionLimiter(opt.MaxSessions)
	}
	return &Resolver{
		opt:     opt,
		limiter: limiter,
	}
}

// Fetch resolves a batch of ASNs to sorted network prefixes. ASNs are
// canonicalized first, so raw forms like "2906" are accepted. An empty
// batch returns an empty map without touching the network, and a batch
// answered entirely from the cache opens no registry connection. Any
// protocol or network error aborts the whole batch without partial results.
func (r *Resolver) Fetch(asns ...string) (map[string]*Networks, error) {
	result := make(map[string]*Networks)
	if len(asns) == 0 {
		return result, nil
	}
	normalized, err := NormalizeASNs(asns)
	if err != nil {
		return nil, err
	}

	Log.WithFields(logrus.Fields{
		"asn":    joinASNs(normalized),
		"server": net.JoinHostPort(r.opt.Server, strconv.Itoa(r.opt.Port)),
	}).Info("fetching routes")

	raw := map[Family]map[ASN][]string{
		IPv4: {},
		IPv6: {},
	}

	// The session is opened on the first cache miss and closed before the
	// responses are parsed. Both close paths release the session slot.
	var session *Session
	closeSession := func() {
		if session == nil {
			return
		}
		session.Close()
		session = nil
		r.limiter.release()
	}
	defer closeSession()

	for _, asn := range normalized {
		for _, family := range r.families() {
			routes, ok := r.fromCache(asn, family)
			if !ok {
				if session == nil {
					r.limiter.acquire()
					session, err = DialSession(r.opt.Server, r.opt.Port, r.opt.Timeout)
					if err != nil {
						r.limiter.release()
						return nil, err
					}
				}
				routes, err = session.Query(asn, family)
				if err != nil {
					return nil, err
				}
				// Network-origin results are cached even when empty, so the
				// next lookup can distinguish "no routes" from "not cached".
				r.toCache(asn, family, routes)
			}
			raw[family][asn] = routes
		}
	}
	closeSession()

	for _, asn := range normalized {
		v4, err := parsePrefixes(raw[IPv4][asn])
		if err != nil {
			return nil, err
		}
		v6, err := parsePrefixes(raw[IPv6][asn])
		if err != nil {
			return nil, err
		}
		result[string(asn)] = &Networks{IPv4: v4, IPv6: v6}
	}
	return result, nil
}

func (r *Resolver) families() []Family {
	families := make([]Family, 0, 2)
	if r.opt.IPv4 {
		families = append(families, IPv4)
	}
	if r.opt.IPv6 {
		families = append(families, IPv6)
	}
	return families
}

func (r *Resolver) fromCache(asn ASN, family Family) ([]string, bool) {
	if r.opt.Cache == nil {
		return nil, false
	}
	routes, err := r.opt.Cache.Get(asn, family)
	if err != nil {
		// An unavailable cache is treated like a miss, it never fails the
		// batch.
		if !errors.Is(err, ErrCacheMiss) {
			logger("resolver", asn, family).WithError(err).Warn("cache unavailable, falling back to registry")
		}
		return nil, false
	}
	return routes, true
}

func (r *Resolver) toCache(asn ASN, family Family, routes []string) {
	if r.opt.Cache == nil {
		return
	}
	if err := r.opt.Cache.Set(asn, family, routes); err != nil {
		logger("resolver", asn, family).WithError(err).Warn("failed to store routes in cache")
	}
}

func (r *Resolver) String() string {
	return "Resolver(" + net.JoinHostPort(r.opt.Server, strconv.Itoa(r.opt.Port)) + ")"
}

func joinASNs(asns []ASN) string {
	parts := make([]string, len(asns))
	for i, asn := range asns {
		parts[i] = string(asn)
	}
	return strings.Join(parts, ",")
}
