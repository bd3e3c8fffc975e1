// Package server exposes the compiler over Connect, gRPC health checks and
// the Language Server Protocol.
package server

import (
	"fmt"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
)

var log = commonlog.GetLogger("scriptc.server")

// ScriptServer serves the compile service over Connect (HTTP/JSON and
// binary) and a gRPC health service on a separate listener.
type ScriptServer struct {
	worker *CompileWorker
	mux    *http.ServeMux
	health *Health
	grpc   *grpc.Server
}

// ServerOption configures a ScriptServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handlerOpts []connect.HandlerOption
	worker      *CompileWorker
}

// WithHandlerOptions passes options to every Connect handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOpts = append(c.handlerOpts, opts...) }
}

// WithWorker serves requests on an existing worker instead of starting one.
func WithWorker(w *CompileWorker) ServerOption {
	return func(c *serverConfig) { c.worker = w }
}

// New creates a ScriptServer compiling in env.
func New(env *CompileEnv, opts ...ServerOption) *ScriptServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := cfg.worker
	if worker == nil {
		worker = NewCompileWorker(env)
	}

	s := &ScriptServer{
		worker: worker,
		mux:    http.NewServeMux(),
		health: NewHealth(),
		grpc:   grpc.NewServer(),
	}

	path, handler := NewCompileService(worker).Handler(cfg.handlerOpts...)
	s.mux.Handle(path, handler)
	s.health.Register(s.grpc)

	return s
}

// Handler returns the Connect handler.
func (s *ScriptServer) Handler() http.Handler { return s.mux }

// Worker returns the worker serving requests.
func (s *ScriptServer) Worker() *CompileWorker { return s.worker }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *ScriptServer) ListenAndServe(addr string) error {
	fmt.Printf("scriptc compile server listening on %s\n", addr)
	fmt.Printf("  Connect: http://%s%s\n", addr, CompileProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// ServeGRPC serves the gRPC health service on lis until Stop.
func (s *ScriptServer) ServeGRPC(lis net.Listener) error {
	log.Debugf("grpc health listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop shuts down the server.
func (s *ScriptServer) Stop() {
	s.health.Shutdown()
	s.grpc.Stop()
	s.worker.Stop()
}
