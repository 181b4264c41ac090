package asn2ip

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by cache lookups when no entry exists for a key.
// A cached empty route list is not a miss.
var ErrCacheMiss = errors.New("cache miss")

// ValidationError is returned for malformed ASNs or prefix strings. It is
// correctable by the caller.
type ValidationError struct {
	Value  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid value '%s': %s", e.Value, e.Reason)
}

// ProtocolError is returned when the registry sends a line that doesn't match
// the expected response grammar. It invalidates the whole session.
type ProtocolError struct {
	Line  string
	State string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("unexpected registry response %q in state %s", e.Line, e.State)
}

// NetworkError is returned for connection-level failures talking to the
// registry, including connect and read timeouts. It invalidates the session.
type NetworkError struct {
	Op   string
	Addr string
	Err  error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e NetworkError) Unwrap() error { return e.Err }

// CacheError is returned by the cache once its retry budget is exhausted.
// The Resolver treats it as a cache miss, it never aborts a batch.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e CacheError) Error() string {
	return fmt.Sprintf("cache %s for key %s: %v", e.Op, e.Key, e.Err)
}

func (e CacheError) Unwrap() error { return e.Err }
