// Package testutil provides helpers for HTTP tests against the portfolio
// router in environments where binding a socket may be denied.
package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// NewTestServer serves the handler (typically the assembled portfolio
// router) on a loopback port, or skips the test when the sandbox forbids
// listening. The server is closed when the test ends.
func NewTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip: cannot listen in sandbox: %v", err)
	}

	srv := &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
