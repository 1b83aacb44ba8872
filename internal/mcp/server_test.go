package mcp

import (
	"context"
	"io"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/history"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.History = history.Options{Backend: "memory"}
	p, err := pipeline.Build(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return New(p, "test")
}

func TestEvaluateExchangeBothDomains(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleEvaluateExchange(context.Background(), &mcpsdk.CallToolRequest{}, ExchangeInput{
		URL:            "https://example.com/api/v1/users",
		Method:         "GET",
		RequestHeaders: map[string]string{"User-Agent": "python-crawler", "X-Debug": "1"},
		Cookies:        map[string]string{"_ga": "GA1.2", "SID": "abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success")
	}
	if out.Skipped || len(out.Reports) != 2 {
		t.Fatalf("expected two reports, got %+v", out)
	}
	if out.Reports[0].Domain != model.DomainPrivacy || out.Reports[1].Domain != model.DomainToS {
		t.Errorf("unexpected domain order: %s, %s", out.Reports[0].Domain, out.Reports[1].Domain)
	}
	tos := out.Reports[1]
	if tos.Summary.TotalViolations != 2 {
		t.Errorf("expected automated access and reverse engineering, got %+v", tos.Violations)
	}
	if len(out.StorageFindings) != 2 {
		t.Errorf("expected analytics and security cookie findings, got %+v", out.StorageFindings)
	}
}

func TestEvaluateExchangeSkipped(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleEvaluateExchange(context.Background(), &mcpsdk.CallToolRequest{}, ExchangeInput{
		URL: "https://example.com/favicon.ico", Domain: "privacy",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || len(out.Reports) != 0 {
		t.Errorf("expected skip, got %+v", out)
	}
}

func TestEvaluateExchangeUnknownDomain(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleEvaluateExchange(context.Background(), &mcpsdk.CallToolRequest{}, ExchangeInput{
		URL: "https://example.com/", Domain: "ccpa",
	})
	if err == nil {
		t.Fatal("expected error for unknown domain")
	}
}

func TestEvaluateTextUnconfigured(t *testing.T) {
	s := newTestServer(t)
	result, out, err := s.handleEvaluateText(context.Background(), &mcpsdk.CallToolRequest{}, TextInput{Text: "my ssn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result when no scorer is configured")
	}
	if out.Error == "" {
		t.Error("expected error message in output")
	}
}

func TestHistoryTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := s.handleEvaluateExchange(ctx, &mcpsdk.CallToolRequest{}, ExchangeInput{URL: "https://example.com/", Domain: "tos"}); err != nil {
			t.Fatal(err)
		}
	}
	_, out, err := s.handleHistory(ctx, &mcpsdk.CallToolRequest{}, HistoryInput{Domain: "TOS"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Domain != "tos" || len(out.Reports) != 3 {
		t.Errorf("history = %s with %d reports", out.Domain, len(out.Reports))
	}

	_, empty, err := s.handleHistory(ctx, &mcpsdk.CallToolRequest{}, HistoryInput{Domain: "privacy"})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Reports == nil || len(empty.Reports) != 0 {
		t.Errorf("expected an empty non-nil list, got %v", empty.Reports)
	}
}

func TestToolsListed(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	ss, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"consentwatch_evaluate_exchange", "consentwatch_evaluate_text", "consentwatch_history"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tools = %v, want %v", names, want)
		}
	}
}
