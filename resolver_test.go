package asn2ip

import (
	"bufio"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubRegistry is a minimal in-process registry speaking the bulk query
// protocol. Responses are canned per command line.
type stubRegistry struct {
	ln        net.Listener
	responses map[string][]string

	mu    sync.Mutex
	conns int
}

func newStubRegistry(t *testing.T, responses map[string][]string) *stubRegistry {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &stubRegistry{ln: ln, responses: responses}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *stubRegistry) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *stubRegistry) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch line {
		case "!!":
		case "exit":
			return
		default:
			for _, l := range s.responses[line] {
				if _, err := conn.Write([]byte(l + "\n")); err != nil {
					return
				}
			}
		}
	}
}

func (s *stubRegistry) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *stubRegistry) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func newTestResolver(t *testing.T, s *stubRegistry, cache *Cache) *Resolver {
	t.Helper()
	host, port := s.hostPort(t)
	return NewResolver(ResolverOptions{
		Server:  host,
		Port:    port,
		IPv4:    true,
		IPv6:    true,
		Timeout: 2 * time.Second,
		Cache:   cache,
	})
}

func TestResolverFetch(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "191.1.0.0/16", "C"},
		"!62906": {"A2906", "D"},
	})
	r := newTestResolver(t, s, nil)

	result, err := r.Fetch("2906")
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, []netip.Prefix{netip.MustParsePrefix("191.1.0.0/16")}, result["AS2906"].IPv4)
	require.Empty(t, result["AS2906"].IPv6)
}

func TestResolverFetchSorted(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "10.0.0.0/8 1.0.0.0/24", "10.0.0.0/16", "C"},
		"!62906": {"A2906", "D"},
	})
	r := newTestResolver(t, s, nil)

	result, err := r.Fetch("AS2906")
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("1.0.0.0/24"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/16"),
	}, result["AS2906"].IPv4)
}

func TestResolverEmptyBatch(t *testing.T) {
	s := newStubRegistry(t, nil)
	r := newTestResolver(t, s, nil)

	result, err := r.Fetch()
	require.NoError(t, err)
	require.Empty(t, result)
	require.Equal(t, 0, s.connections())
}

func TestResolverInvalidASN(t *testing.T) {
	s := newStubRegistry(t, nil)
	r := newTestResolver(t, s, nil)

	_, err := r.Fetch("bogus")
	require.Error(t, err)
	require.IsType(t, ValidationError{}, err)
	require.Equal(t, 0, s.connections())
}

func TestResolverUsesCache(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "191.1.0.0/16", "C"},
		"!62906": {"A2906", "2a00:86c0::/32", "C"},
	})
	cache := NewCache(CacheOptions{Backend: NewMemoryBackend(MemoryBackendOptions{})})
	r := newTestResolver(t, s, cache)

	first, err := r.Fetch("2906")
	require.NoError(t, err)
	require.Equal(t, 1, s.connections())

	// The second batch is served from cache without a registry connection
	second, err := r.Fetch("2906")
	require.NoError(t, err)
	require.Equal(t, 1, s.connections())
	require.Equal(t, first, second)
}

func TestResolverCachesEmptyResult(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g64496": {"A64496", "C"},
		"!664496": {"A64496", "D"},
	})
	cache := NewCache(CacheOptions{Backend: NewMemoryBackend(MemoryBackendOptions{})})
	r := newTestResolver(t, s, cache)

	result, err := r.Fetch("64496")
	require.NoError(t, err)
	require.Empty(t, result["AS64496"].IPv4)
	require.Equal(t, 1, s.connections())

	// Empty success and no-data results are cached too
	result, err = r.Fetch("64496")
	require.NoError(t, err)
	require.Empty(t, result["AS64496"].IPv4)
	require.Equal(t, 1, s.connections())
}

func TestResolverCacheUnavailable(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "191.1.0.0/16", "C"},
		"!62906": {"A2906", "D"},
	})
	backend := newTestBackend()
	backend.err = net.ErrClosed
	cache := NewCache(CacheOptions{Backend: backend, Attempts: 2})
	r := newTestResolver(t, s, cache)

	// A dead cache degrades to registry lookups, the batch still succeeds
	for i := 0; i < 2; i++ {
		result, err := r.Fetch("2906")
		require.NoError(t, err)
		require.Equal(t, []netip.Prefix{netip.MustParsePrefix("191.1.0.0/16")}, result["AS2906"].IPv4)
	}
	require.Equal(t, 2, s.connections())
}

func TestResolverProtocolError(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g64496": {"A64496", "10.0.0.0/8", "C"},
		"!664496": {"A64496", "D"},
		"!g2906":  {"X2906", "C"},
	})
	r := newTestResolver(t, s, nil)

	// The violation aborts the whole batch, no partial results
	result, err := r.Fetch("64496", "2906")
	require.Error(t, err)
	require.IsType(t, ProtocolError{}, err)
	require.Nil(t, result)
}

func TestResolverInvalidPrefix(t *testing.T) {
	s := newStubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "not-a-prefix", "C"},
		"!62906": {"A2906", "D"},
	})
	r := newTestResolver(t, s, nil)

	_, err := r.Fetch("2906")
	require.Error(t, err)
	require.IsType(t, ValidationError{}, err)
}

func TestResolverConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	ln.Close()

	r := NewResolver(ResolverOptions{
		Server:  host,
		Port:    port,
		IPv4:    true,
		Timeout: time.Second,
	})
	_, err = r.Fetch("2906")
	require.Error(t, err)
	require.IsType(t, NetworkError{}, err)
}
