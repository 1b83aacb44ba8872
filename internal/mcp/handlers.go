package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
)

// --- Input/Output types ---

// ExchangeInput defines parameters for consentwatch_evaluate_exchange.
type ExchangeInput struct {
	URL             string            `json:"url" jsonschema:"request URL"`
	Method          string            `json:"method,omitempty" jsonschema:"HTTP method"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty" jsonschema:"request headers"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty" jsonschema:"response headers"`
	Cookies         map[string]string `json:"cookies,omitempty" jsonschema:"cookie names and values sent with the request"`
	LocalStorage    map[string]string `json:"local_storage,omitempty" jsonschema:"web storage keys and values of the page"`
	Domain          string            `json:"domain,omitempty" jsonschema:"privacy or tos, omit for both"`
}

// ExchangeOutput holds one report per evaluated domain.
type ExchangeOutput struct {
	Skipped         bool            `json:"skipped"`
	Reports         []*model.Report `json:"reports"`
	StorageFindings []model.Finding `json:"storage_findings"`
}

// TextInput defines parameters for consentwatch_evaluate_text.
type TextInput struct {
	Text string `json:"text" jsonschema:"text to score"`
}

// TextOutput is the scorer answer with the banner decision.
type TextOutput struct {
	Score          float64 `json:"score"`
	Message        string  `json:"message"`
	Recommendation string  `json:"recommendation"`
	Visible        bool    `json:"visible"`
	Error          string  `json:"error,omitempty"`
}

// HistoryInput defines parameters for consentwatch_history.
type HistoryInput struct {
	Domain string `json:"domain" jsonschema:"privacy or tos"`
}

// HistoryOutput lists stored reports, oldest first.
type HistoryOutput struct {
	Domain  string          `json:"domain"`
	Reports []*model.Report `json:"reports"`
}

// --- Handlers ---

func (s *Server) handleEvaluateExchange(ctx context.Context, req *mcpsdk.CallToolRequest, input ExchangeInput) (*mcpsdk.CallToolResult, ExchangeOutput, error) {
	out := ExchangeOutput{Reports: []*model.Report{}, StorageFindings: []model.Finding{}}
	c := extract.Capture{
		URL:             input.URL,
		Method:          input.Method,
		RequestHeaders:  input.RequestHeaders,
		ResponseHeaders: input.ResponseHeaders,
		Cookies:         input.Cookies,
		LocalStorage:    input.LocalStorage,
	}

	if input.Domain != "" {
		domain, ok := model.ParseDomain(input.Domain)
		if !ok {
			return nil, out, fmt.Errorf("unknown domain %q", input.Domain)
		}
		report, err := s.pipeline.Engine.ProcessDomain(ctx, c, domain)
		if err != nil {
			return nil, out, err
		}
		if report == nil {
			out.Skipped = true
			return nil, out, nil
		}
		out.Reports = append(out.Reports, report)
		return nil, out, nil
	}

	outcome, err := s.pipeline.Engine.Process(ctx, c)
	if err != nil {
		return nil, out, err
	}
	out.Skipped = outcome.Skipped
	for _, r := range []*model.Report{outcome.Privacy, outcome.ToS} {
		if r != nil {
			out.Reports = append(out.Reports, r)
		}
	}
	if outcome.Storage != nil {
		out.StorageFindings = append(out.StorageFindings, outcome.Storage.Findings...)
	}
	return nil, out, nil
}

func (s *Server) handleEvaluateText(ctx context.Context, req *mcpsdk.CallToolRequest, input TextInput) (*mcpsdk.CallToolResult, TextOutput, error) {
	if input.Text == "" {
		return nil, TextOutput{}, fmt.Errorf("text is required")
	}
	res, err := s.pipeline.Session.Submit(ctx, input.Text)
	if err != nil {
		out := TextOutput{Error: err.Error()}
		return &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		}, out, nil
	}
	return nil, TextOutput{
		Score:          res.Score,
		Message:        res.Message,
		Recommendation: res.Recommendation,
		Visible:        s.pipeline.Session.Visible(res),
	}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *mcpsdk.CallToolRequest, input HistoryInput) (*mcpsdk.CallToolResult, HistoryOutput, error) {
	domain, ok := model.ParseDomain(input.Domain)
	if !ok {
		return nil, HistoryOutput{}, fmt.Errorf("unknown domain %q", input.Domain)
	}
	entries, err := s.pipeline.Engine.History(ctx, domain)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	out := HistoryOutput{Domain: string(domain), Reports: make([]*model.Report, 0, len(entries))}
	for _, e := range entries {
		out.Reports = append(out.Reports, e.Report)
	}
	return nil, out, nil
}
