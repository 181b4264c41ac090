package asn2ip

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is applied to connects as well as to every read and write
// on a registry session if no other timeout is configured.
const DefaultTimeout = 10 * time.Second

type sessionState int

const (
	stateClosed sessionState = iota
	stateConnected
	stateBulk
)

// Session is a single-use connection to a routing registry. It is not safe
// for concurrent use; commands and their response frames must be strictly
// interleaved. Any protocol or network error invalidates the session and
// the caller is expected to close it.
type Session struct {
	addr    string
	conn    net.Conn
	buf     *bufio.Reader
	timeout time.Duration
	state   sessionState
}

// DialSession opens a TCP connection to the registry and enables bulk mode
// so multiple queries can be issued without re-handshaking. The timeout
// applies to the connect and to each subsequent read and write.
func DialSession(server string, port int, timeout time.Duration) (*Session, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(server, strconv.Itoa(port))
	Log.WithField("addr", addr).Debug("connecting to registry")
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, NetworkError{Op: "connect", Addr: addr, Err: err}
	}
	s := &Session{
		addr:    addr,
		conn:    conn,
		buf:     bufio.NewReader(conn),
		timeout: timeout,
		state:   stateConnected,
	}
	if err := s.writeLine("!!"); err != nil {
		s.Close()
		return nil, err
	}
	s.state = stateBulk
	return s, nil
}

// Query requests the routes one ASN originates for one address family and
// parses exactly one response frame. The returned slice is nil if the
// registry answered "no data" and non-nil (possibly empty) otherwise. The
// tokens are raw strings, CIDR validation happens later.
func (s *Session) Query(asn ASN, family Family) ([]string, error) {
	if s.state != stateBulk {
		return nil, ProtocolError{Line: "", State: "session not in bulk mode"}
	}
	logger("session", asn, family).Debug("querying registry")
	if err := s.writeLine(family.cmd() + asn.Number()); err != nil {
		return nil, err
	}

	var p frameParser
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		done, err := p.feed(line)
		if err != nil {
			return nil, err
		}
		if done {
			return p.result(), nil
		}
	}
}

// Close terminates the session. The exit command is best-effort, the socket
// is released regardless. Close is idempotent.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	Log.WithField("addr", s.addr).Debug("closing registry session")
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	s.conn.Write([]byte("exit\n"))
	return s.conn.Close()
}

func (s *Session) writeLine(line string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return NetworkError{Op: "write", Addr: s.addr, Err: err}
	}
	if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
		return NetworkError{Op: "write", Addr: s.addr, Err: err}
	}
	return nil
}

func (s *Session) readLine() (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", NetworkError{Op: "read", Addr: s.addr, Err: err}
	}
	line, err := s.buf.ReadString('\n')
	if err != nil {
		return "", NetworkError{Op: "read", Addr: s.addr, Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}
