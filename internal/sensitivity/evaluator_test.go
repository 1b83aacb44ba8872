package sensitivity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/neurorouter"

	"github.com/ppiankov/consentwatch/internal/model"
)

func fixed(payload string) Scorer {
	return ScorerFunc(func(context.Context, string) ([]byte, error) {
		return []byte(payload), nil
	})
}

func TestThresholdBoundary(t *testing.T) {
	tests := []struct {
		payload string
		visible bool
	}{
		{`{"score": 80, "message": "contains PII"}`, true},
		{`{"score": 40, "message": "mostly harmless"}`, false},
		{`{"score": 76, "message": "m"}`, true},
		{`{"score": 74, "message": "m"}`, false},
		{`{"score": 75, "message": "m"}`, false},
	}
	for _, tt := range tests {
		e := NewEvaluator(fixed(tt.payload), 0, 0)
		res, err := e.Evaluate(context.Background(), "text")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.payload, err)
		}
		if got := e.Visible(res); got != tt.visible {
			t.Errorf("%s: expected visible=%v, got %v", tt.payload, tt.visible, got)
		}
	}
}

func TestConfigurableThreshold(t *testing.T) {
	e := NewEvaluator(fixed(`{"score": 60, "message": "m"}`), 0, 50)
	res, _ := e.Evaluate(context.Background(), "x")
	if !e.Visible(res) {
		t.Error("expected score 60 to exceed threshold 50")
	}
}

func TestZeroThresholdShowsAnyPositiveScore(t *testing.T) {
	e := NewEvaluator(fixed(`{"score": 1, "message": "m"}`), 0, 0)
	if e.Threshold != DefaultThreshold {
		t.Fatalf("constructor threshold = %v, want default", e.Threshold)
	}
	e.Threshold = 0
	res, err := e.Evaluate(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Visible(res) {
		t.Error("score 1 should exceed an explicit threshold of 0")
	}
	if e.Visible(model.SensitivityResult{Score: 0, Message: "m"}) {
		t.Error("score 0 must not exceed threshold 0")
	}
}

func TestUnconfiguredNeverCallsScorer(t *testing.T) {
	e := NewEvaluator(nil, 0, 0)
	_, err := e.Evaluate(context.Background(), "my ssn is 123")
	if !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("expected ErrUnconfigured, got %v", err)
	}
	var ee *EvaluationError
	if !errors.As(err, &ee) || ee.Kind != KindUnconfigured {
		t.Errorf("expected unconfigured kind, got %v", err)
	}
}

func TestMalformedPayloads(t *testing.T) {
	payloads := []string{
		`not json`,
		`{"score": 80}`,
		`{"message": "no score"}`,
		`{"score": "80", "message": "string score"}`,
		`{"score": 80, "message": ""}`,
		`{"score": 80, "message": "   "}`,
		`{"score": 120, "message": "out of range"}`,
		`{"score": -1, "message": "out of range"}`,
		`{"score": 80, "message": "m", "recommendation": 3}`,
		`[80, "m"]`,
	}
	for _, p := range payloads {
		_, err := NewEvaluator(fixed(p), 0, 0).Evaluate(context.Background(), "x")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse, got %v", p, err)
		}
	}
}

func TestFencedPayloadAccepted(t *testing.T) {
	e := NewEvaluator(fixed("```json\n{\"score\": 10, \"message\": \"ok\", \"recommendation\": \"none\"}\n```"), 0, 0)
	res, err := e.Evaluate(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 10 || res.Message != "ok" || res.Recommendation != "none" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTransportErrors(t *testing.T) {
	e := NewEvaluator(ScorerFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}), 0, 0)
	_, err := e.Evaluate(context.Background(), "x")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Error("transport error must not match malformed")
	}
}

func TestTimeoutIsTransport(t *testing.T) {
	e := NewEvaluator(ScorerFunc(func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 20*time.Millisecond, 0)

	start := time.Now()
	_, err := e.Evaluate(context.Background(), "x")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not applied")
	}
}

func TestCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEvaluator(ScorerFunc(func(c context.Context, _ string) ([]byte, error) {
		cancel()
		<-c.Done()
		return nil, c.Err()
	}), 0, 0)
	_, err := e.Evaluate(ctx, "x")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAlreadyCancelledContext(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEvaluator(ScorerFunc(func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return []byte(`{"score": 1, "message": "m"}`), nil
	}), 0, 0)
	if _, err := e.Evaluate(ctx, "x"); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("scorer called for a cancelled evaluation")
	}
}

func TestChatScorerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model       string              `json:"model"`
			Temperature float64             `json:"temperature"`
			Messages    []map[string]string `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model %q", body.Model)
		}
		if body.Temperature != 0 {
			t.Errorf("expected temperature 0, got %v", body.Temperature)
		}
		if len(body.Messages) != 2 || body.Messages[0]["role"] != "system" || body.Messages[1]["content"] != "my passport number" {
			t.Errorf("unexpected messages %v", body.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "```json\n{\"score\": 90, \"message\": \"passport\"}\n```"}}},
		})
	}))
	defer srv.Close()

	e := NewEvaluator(&ChatScorer{APIURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini"}, 0, 0)
	res, err := e.Evaluate(context.Background(), "my passport number")
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 90 || !e.Visible(res) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestChatScorerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewEvaluator(&ChatScorer{APIURL: srv.URL}, 0, 0).Evaluate(context.Background(), "x")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, neurorouter.ErrRateLimited) {
		t.Errorf("expected neurorouter.ErrRateLimited, got %v", err)
	}
}

func TestChatScorerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewEvaluator(&ChatScorer{APIURL: srv.URL}, 0, 0).Evaluate(context.Background(), "x")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestChatScorerEmptyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewEvaluator(&ChatScorer{APIURL: srv.URL}, 0, 0).Evaluate(context.Background(), "x")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}
