// Package server exposes the compliance engine as a gRPC service with the
// standard health service, and hot-reloads its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
	"github.com/ppiankov/consentwatch/internal/sensitivity"
)

// Config holds gRPC server configuration.
type Config struct {
	Addr string
	// ConfigPath is re-read by Reload.
	ConfigPath string
	Log        io.Writer
}

// Server implements ComplianceService on top of a Pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	cfg      Config

	grpcServer *grpc.Server
	health     *health.Server
}

// New registers the compliance and health services on a fresh grpc.Server.
func New(p *pipeline.Pipeline, cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	s := &Server{
		pipeline:   p,
		cfg:        cfg,
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
	}
	RegisterComplianceServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn serves on an existing listener.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the service NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Reload re-reads the config file and applies the catalogue and alert
// settings. The previous settings stay active on error.
func (s *Server) Reload() error {
	cfg, err := config.Load(s.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	if err := s.pipeline.Reload(cfg); err != nil {
		return err
	}
	config.Set(cfg)
	return nil
}

// EvaluateExchange implements the EvaluateExchange RPC. The answer has the
// shape of engine.Outcome.
func (s *Server) EvaluateExchange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExchangeRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if req.Domain == "" {
		out, err := s.pipeline.Engine.Process(ctx, req.Capture)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return encode(out)
	}

	domain, ok := model.ParseDomain(req.Domain)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown domain %q", req.Domain)
	}
	report, err := s.pipeline.Engine.ProcessDomain(ctx, req.Capture, domain)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := engine.Outcome{Skipped: report == nil}
	switch domain {
	case model.DomainPrivacy:
		out.Privacy = report
	case model.DomainToS:
		out.ToS = report
	}
	return encode(out)
}

// EvaluateText implements the EvaluateText RPC. The answer has the shape of
// model.TextEvaluation.
func (s *Server) EvaluateText(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TextRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	res, err := s.pipeline.Session.Submit(ctx, req.Text)
	if err != nil {
		return nil, status.Error(TextCode(err), err.Error())
	}
	return encode(model.TextEvaluation{Result: res, Visible: s.pipeline.Session.Visible(res)})
}

// History implements the History RPC. The answer has the shape of
// model.HistoryPage.
func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req HistoryRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	domain, ok := model.ParseDomain(req.Domain)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown domain %q", req.Domain)
	}
	entries, err := s.pipeline.Engine.History(ctx, domain)
	if err != nil {
		fmt.Fprintf(s.cfg.Log, "server: history %s: %v\n", domain, err)
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	page := model.HistoryPage{Domain: domain, Reports: make([]*model.Report, 0, len(entries))}
	for _, e := range entries {
		page.Reports = append(page.Reports, e.Report)
	}
	return encode(page)
}

// TextCode maps a text evaluation error to a gRPC status code.
func TextCode(err error) codes.Code {
	switch {
	case errors.Is(err, sensitivity.ErrUnconfigured):
		return codes.FailedPrecondition
	case errors.Is(err, sensitivity.ErrCancelled):
		return codes.Canceled
	case errors.Is(err, sensitivity.ErrTransport):
		return codes.Unavailable
	case errors.Is(err, sensitivity.ErrMalformedResponse):
		return codes.DataLoss
	default:
		return codes.Internal
	}
}

func encode(v any) (*structpb.Struct, error) {
	out, err := Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
