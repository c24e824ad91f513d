package server

import (
	"net"
	"net/http"

	"github.com/juju/errors"
)

type HTTPServerParams struct {
	// TLSCertFile and TLSKeyFile are file paths. When set, the server
	// serves TLS; the certificate contents are opaque to wireline.
	TLSCertFile string
	TLSKeyFile  string
}

// HTTPServer wraps a net/http server with start/stop semantics for the
// HTTP surface (probes, metrics, WebSocket upgrades).
type HTTPServer struct {
	server *http.Server
	params HTTPServerParams
}

func NewHTTPServer(params HTTPServerParams, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{Handler: handler},
		params: params,
	}
}

func (s *HTTPServer) Start(l net.Listener) (err error) {
	if s.params.TLSCertFile != "" {
		err = s.server.ServeTLS(l, s.params.TLSCertFile, s.params.TLSKeyFile)
	} else {
		err = s.server.Serve(l)
	}

	return errors.Annotate(err, "start")
}

func (s *HTTPServer) Stop() error {
	return errors.Annotate(s.server.Close(), "stop")
}
