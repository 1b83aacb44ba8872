// Package proxy is a forward HTTP proxy that captures exchanges for
// evaluation. It never blocks or modifies traffic.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
)

// Processor evaluates captured exchanges.
type Processor interface {
	Process(ctx context.Context, c extract.Capture) (engine.Outcome, error)
}

// Config holds proxy server configuration.
type Config struct {
	Addr string
	// Transport forwards requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Log       io.Writer
	// HeaderNames returns the header keys the checks look up. Defaults to
	// the built-in catalogue's.
	HeaderNames func() []string
}

// Server forwards plain HTTP requests and hands each completed exchange to a
// Processor in the background. CONNECT tunnels are passed through uninspected.
type Server struct {
	cfg       Config
	processor Processor
	srv       *http.Server
	pending   sync.WaitGroup
}

// NewServer creates a proxy that reports to p.
func NewServer(cfg Config, p Processor) *Server {
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	if cfg.HeaderNames == nil {
		names := catalogue.Default().HeaderNames()
		cfg.HeaderNames = func() []string { return names }
	}
	s := &Server{cfg: cfg, processor: p}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens for proxy connections. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.Addr = ln.Addr().String()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	err := s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Wait blocks until every captured exchange has been evaluated.
func (s *Server) Wait() {
	s.pending.Wait()
}

// ServeHTTP dispatches incoming requests to the appropriate handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
	} else {
		s.handleHTTP(w, r)
	}
}

// handleHTTP forwards the request, streams the response back and queues the
// exchange for evaluation.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	s.pending.Add(1)
	resp, err := s.cfg.Transport.RoundTrip(r)
	if err != nil {
		s.pending.Done()
		http.Error(w, fmt.Sprintf("proxy error: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)

	s.evaluate(r.Context(), extract.FromHTTP(r, resp, s.cfg.HeaderNames()...))
}

// evaluate releases the pending slot taken by handleHTTP.
func (s *Server) evaluate(ctx context.Context, c extract.Capture) {
	if s.processor == nil {
		s.pending.Done()
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.pending.Done()
		if _, err := s.processor.Process(ctx, c); err != nil {
			fmt.Fprintf(s.cfg.Log, "proxy: evaluate %s: %v\n", c.URL, err)
		}
	}()
}

// handleConnect tunnels HTTPS without looking at the payload.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	targetConn, err := net.DialTimeout("tcp", r.Host, 10*time.Second)
	if err != nil {
		http.Error(w, fmt.Sprintf("tunnel error: %v", err), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		targetConn.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		targetConn.Close()
		fmt.Fprintf(s.cfg.Log, "proxy: hijack %s: %v\n", r.Host, err)
		return
	}

	go func() {
		defer targetConn.Close()
		defer clientConn.Close()
		io.Copy(targetConn, clientConn)
	}()
	go func() {
		defer targetConn.Close()
		defer clientConn.Close()
		io.Copy(clientConn, targetConn)
	}()
}
