package main

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubRegistry answers bulk queries with canned response lines.
func stubRegistry(t *testing.T, responses map[string][]string) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimRight(line, "\r\n")
					if line == "exit" {
						return
					}
					for _, l := range responses[line] {
						conn.Write([]byte(l + "\n"))
					}
				}
			}(conn)
		}
	}()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	host, port := stubRegistry(t, map[string][]string{
		"!g2906": {"A2906", "191.1.0.0/16 191.2.0.0/17", "C"},
		"!62906": {"A2906", "2a00:86c0::/32", "C"},
	})
	return newServer(serverOptions{
		WhoisHost: host,
		WhoisPort: port,
		Timeout:   2 * time.Second,
		URL:       "http://localhost:8080",
	}, nil, nil)
}

func TestServerFetchText(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2906", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "191.1.0.0/16 191.2.0.0/17 2a00:86c0::/32", rec.Body.String())
}

func TestServerFetchSeparator(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2906?ipv6=false&separator=%2C", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "191.1.0.0/16,191.2.0.0/17", rec.Body.String())
}

func TestServerFetchJSON(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2906?json=yes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]struct {
		IPv4 []string `json:"ipv4"`
		IPv6 []string `json:"ipv6"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, []string{"191.1.0.0/16", "191.2.0.0/17"}, payload["AS2906"].IPv4)
	require.Equal(t, []string{"2a00:86c0::/32"}, payload["AS2906"].IPv6)
}

func TestServerFetchInvalidASN(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bogus", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerFetchInvalidParam(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2906?ipv4=maybe", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerIndex(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "How to use")
}
