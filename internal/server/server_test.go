package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// testServer starts an in-process gRPC server on a random port and returns a
// connection to it.
func testServer(t *testing.T, configYAML string) (*Server, *grpc.ClientConn, *syncBuffer) {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")

	path := writeTempFile(t, t.TempDir(), "config.yaml", configYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	log := &syncBuffer{}
	p, err := pipeline.Build(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}

	srv := New(p, Config{ConfigPath: path, Log: log})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		srv.GracefulStop()
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.GracefulStop()
		p.Close()
	})
	return srv, conn, log
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, req, resp any) error {
	t.Helper()
	in, err := Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), method, in, out); err != nil {
		return err
	}
	if err := Decode(out, resp); err != nil {
		t.Fatal(err)
	}
	return nil
}

const memoryHistory = "history:\n  backend: memory\n"

var crawler = extract.Capture{
	URL:            "http://shop.example.com/bulk/export",
	Method:         "GET",
	RequestHeaders: map[string]string{"User-Agent": "examplebot/2.1"},
}

func TestEvaluateExchangeAllDomains(t *testing.T) {
	_, conn, _ := testServer(t, memoryHistory)

	var out engine.Outcome
	if err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: crawler}, &out); err != nil {
		t.Fatalf("EvaluateExchange: %v", err)
	}
	if out.Skipped || out.Privacy == nil || out.ToS == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.ToS.Summary.RiskLevel != model.RiskHigh {
		t.Errorf("tos risk = %s, want HIGH", out.ToS.Summary.RiskLevel)
	}
	cats := model.Categories(out.ToS.Violations)
	if len(cats) < 2 || cats[0] != model.CatAutomatedAccess || cats[1] != model.CatAPIAbuse {
		t.Errorf("tos categories = %v", cats)
	}
}

func TestEvaluateExchangeSingleDomain(t *testing.T) {
	_, conn, _ := testServer(t, memoryHistory)

	var out engine.Outcome
	err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: crawler, Domain: "tos"}, &out)
	if err != nil {
		t.Fatalf("EvaluateExchange: %v", err)
	}
	if out.Privacy != nil || out.ToS == nil {
		t.Errorf("expected only a tos report, got %+v", out)
	}

	skipped := extract.Capture{URL: "https://cdn.example.com/site.css"}
	out = engine.Outcome{}
	if err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: skipped, Domain: "privacy"}, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Skipped {
		t.Error("static asset should be skipped")
	}

	err = invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: crawler, Domain: "hipaa"}, &out)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("unknown domain code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestHistoryAfterEvaluations(t *testing.T) {
	_, conn, _ := testServer(t, "history:\n  backend: memory\n  capacity: 3\n")

	for i := 0; i < 5; i++ {
		c := crawler
		c.URL = fmt.Sprintf("https://example.com/page/%d", i)
		var out engine.Outcome
		if err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: c, Domain: "privacy"}, &out); err != nil {
			t.Fatal(err)
		}
	}

	var page model.HistoryPage
	if err := invoke(t, conn, MethodHistory, HistoryRequest{Domain: "privacy"}, &page); err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(page.Reports))
	}
	if page.Reports[0].AnalyzedRequest != "https://example.com/page/2" {
		t.Errorf("oldest kept = %s, want page/2", page.Reports[0].AnalyzedRequest)
	}

	var tos model.HistoryPage
	if err := invoke(t, conn, MethodHistory, HistoryRequest{Domain: "tos"}, &tos); err != nil {
		t.Fatal(err)
	}
	if len(tos.Reports) != 0 {
		t.Errorf("tos history should be empty, got %d", len(tos.Reports))
	}
}

func TestEvaluateTextUnconfigured(t *testing.T) {
	_, conn, _ := testServer(t, memoryHistory)

	var res model.TextEvaluation
	err := invoke(t, conn, MethodEvaluateText, TextRequest{Text: "my card number"}, &res)
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestEvaluateTextWithScorer(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"score\": 88, \"message\": \"card number\", \"recommendation\": \"mask it\"}"}}]}`)
	}))
	defer api.Close()

	_, conn, log := testServer(t, memoryHistory+fmt.Sprintf("scorer:\n  api_url: %s\n  api_key: sk-test\n", api.URL))

	var res model.TextEvaluation
	if err := invoke(t, conn, MethodEvaluateText, TextRequest{Text: "4111 1111 1111 1111"}, &res); err != nil {
		t.Fatalf("EvaluateText: %v", err)
	}
	if res.Result.Score != 88 || !res.Visible {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(log.String(), "Sensitive Text: card number") {
		t.Errorf("expected a sensitivity signal in the log, got %q", log.String())
	}

	err := invoke(t, conn, MethodEvaluateText, TextRequest{}, &res)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty text code = %v", status.Code(err))
	}
}

func TestHealthServing(t *testing.T) {
	_, conn, _ := testServer(t, memoryHistory)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.Status)
	}
}

func TestConcurrentEvaluations(t *testing.T) {
	_, conn, _ := testServer(t, memoryHistory)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := crawler
			c.URL = fmt.Sprintf("https://example.com/item/%d", i)
			in, _ := Encode(ExchangeRequest{Capture: c})
			if err := conn.Invoke(context.Background(), MethodEvaluateExchange, in, new(structpb.Struct)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent evaluation: %v", err)
	}

	var page model.HistoryPage
	if err := invoke(t, conn, MethodHistory, HistoryRequest{Domain: "tos"}, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Reports) != 20 {
		t.Errorf("expected 20 tos reports, got %d", len(page.Reports))
	}
}

func TestReloadAppliesCatalogue(t *testing.T) {
	t.Cleanup(func() { config.Set(nil) })
	srv, conn, _ := testServer(t, memoryHistory)

	human := extract.Capture{
		URL:            "https://example.com/",
		RequestHeaders: map[string]string{"User-Agent": "HeadlessChrome/120"},
	}
	var before engine.Outcome
	if err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: human, Domain: "tos"}, &before); err != nil {
		t.Fatal(err)
	}
	if len(before.ToS.Violations) != 0 {
		t.Fatalf("unexpected violations before reload: %+v", before.ToS.Violations)
	}

	dir := filepath.Dir(srv.cfg.ConfigPath)
	overlay := writeTempFile(t, dir, "catalogue.yaml", "automated_agent_markers: [headless]\n")
	writeTempFile(t, dir, "config.yaml", memoryHistory+"catalogue: "+overlay+"\n")
	if err := srv.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if config.Get().Catalogue != overlay {
		t.Error("reload should install the new process config")
	}

	var after engine.Outcome
	if err := invoke(t, conn, MethodEvaluateExchange, ExchangeRequest{Capture: human, Domain: "tos"}, &after); err != nil {
		t.Fatal(err)
	}
	if len(after.ToS.Violations) != 1 || after.ToS.Violations[0].Category != model.CatAutomatedAccess {
		t.Errorf("expected automated access after reload, got %+v", after.ToS.Violations)
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	srv, _, _ := testServer(t, memoryHistory)
	writeTempFile(t, filepath.Dir(srv.cfg.ConfigPath), "config.yaml", "history: [")
	if err := srv.Reload(); err == nil {
		t.Fatal("expected reload error for invalid yaml")
	}
}

func TestReloaderWatchesWrites(t *testing.T) {
	t.Cleanup(func() { config.Set(nil) })
	srv, _, log := testServer(t, memoryHistory)

	r, err := NewReloader(srv, []string{srv.cfg.ConfigPath, "", filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	if len(r.Paths()) != 1 {
		t.Fatalf("expected only the existing file to be watched, got %v", r.Paths())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(50 * time.Millisecond)
	writeTempFile(t, filepath.Dir(srv.cfg.ConfigPath), "config.yaml", memoryHistory+"concurrent_checks: true\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(log.String(), "hot-reload: config reloaded") {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("reload not observed, log: %q", log.String())
}
