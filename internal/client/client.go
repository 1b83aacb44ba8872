// Package client talks to a consentwatch gRPC server.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/server"
)

const callTimeout = 5 * time.Second

// Client connects to a consentwatch gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// New creates a client for addr. The connection is established lazily.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to compliance server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// EvaluateExchange evaluates c remotely. An empty domain evaluates every domain.
func (c *Client) EvaluateExchange(ctx context.Context, capture extract.Capture, domain string) (engine.Outcome, error) {
	var out engine.Outcome
	err := c.call(ctx, server.MethodEvaluateExchange, server.ExchangeRequest{Capture: capture, Domain: domain}, &out)
	return out, err
}

// EvaluateText scores text remotely.
func (c *Client) EvaluateText(ctx context.Context, text string) (model.TextEvaluation, error) {
	var out model.TextEvaluation
	err := c.call(ctx, server.MethodEvaluateText, server.TextRequest{Text: text}, &out)
	return out, err
}

// History lists the reports stored for domain.
func (c *Client) History(ctx context.Context, domain string) (model.HistoryPage, error) {
	var out model.HistoryPage
	err := c.call(ctx, server.MethodHistory, server.HistoryRequest{Domain: domain}, &out)
	return out, err
}

// Healthy reports whether the server answers SERVING for the compliance service.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.Status == healthpb.HealthCheckResponse_SERVING, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	in, err := server.Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return server.Decode(out, resp)
}
