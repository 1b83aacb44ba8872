package checks

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/model"
)

var secureResponse = map[string]string{
	"Strict-Transport-Security": "max-age=31536000",
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
}

func record(url string, req, resp map[string]string) model.ExchangeRecord {
	if req == nil {
		req = map[string]string{}
	}
	if resp == nil {
		resp = map[string]string{}
	}
	return model.ExchangeRecord{
		URL:             url,
		Method:          "GET",
		RequestHeaders:  req,
		ResponseHeaders: resp,
		Timestamp:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func withSecure(extra map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range secureResponse {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func categories(fs []model.Finding) string {
	var parts []string
	for _, f := range fs {
		parts = append(parts, string(f.Category))
	}
	return strings.Join(parts, ",")
}

func TestCleanHTTPSExchangeHasNoFindings(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/", nil, secureResponse)
	if fs := Privacy().Run(rec, cat); len(fs) != 0 {
		t.Errorf("expected no privacy findings, got %s", categories(fs))
	}
	if fs := ToS().Run(rec, cat); len(fs) != 0 {
		t.Errorf("expected no tos findings, got %s", categories(fs))
	}
}

func TestInsecureTransportOnly(t *testing.T) {
	cat := catalogue.Default()
	rec := record("http://example.com/api", nil, secureResponse)
	v, w := Split(Privacy().Run(rec, cat))
	if len(v) != 1 {
		t.Fatalf("expected 1 violation, got %d (%s)", len(v), categories(v))
	}
	if v[0].Category != model.CatSecurity || v[0].Severity != model.SevHigh {
		t.Errorf("expected HIGH Security, got %s %s", v[0].Severity, v[0].Category)
	}
	if len(w) != 0 {
		t.Errorf("expected 0 warnings, got %s", categories(w))
	}
	if v[0].RelatedRequest != "http://example.com/api" {
		t.Errorf("unexpected related request %s", v[0].RelatedRequest)
	}
	if v[0].Reference != "Section: Keeping your information secure" {
		t.Errorf("unexpected reference %q", v[0].Reference)
	}
}

func TestDataRetention(t *testing.T) {
	cat := catalogue.Default()
	tests := []struct {
		cacheControl string
		want         bool
	}{
		{"max-age=3000000", true},
		{"max-age=1000", false},
		{"public, max-age=2592001, immutable", true},
		{"max-age=2592000", false},
		{"max-age=abc", false},
		{"no-store", false},
	}
	for _, tt := range tests {
		rec := record("https://example.com/", nil, withSecure(map[string]string{"Cache-Control": tt.cacheControl}))
		_, w := Split(Privacy().Run(rec, cat))
		got := categories(w) == string(model.CatDataRetention)
		if got != tt.want {
			t.Errorf("Cache-Control %q: expected retention warning=%v, got %s", tt.cacheControl, tt.want, categories(w))
		}
	}
}

func TestSecurityHeadersWarnPerMissingHeader(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/", nil, map[string]string{"X-Frame-Options": "DENY", "X-Content-Type-Options": ""})
	_, w := Split(Privacy().Run(rec, cat))
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(w))
	}
	if w[0].Detail != "Missing security header: Strict-Transport-Security" {
		t.Errorf("unexpected detail %q", w[0].Detail)
	}
	if w[1].Detail != "Missing security header: X-Content-Type-Options" {
		t.Errorf("unexpected detail %q", w[1].Detail)
	}
}

func TestDataCollectionWarnsPerCategory(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/search?voice=1", nil, secureResponse)
	_, w := Split(Privacy().Run(rec, cat))
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %d (%v)", len(w), w)
	}
	if !strings.Contains(w[0].Detail, "searchHistory") || !strings.Contains(w[1].Detail, "audioData") {
		t.Errorf("expected catalogue order searchHistory then audioData, got %q / %q", w[0].Detail, w[1].Detail)
	}
}

func TestDataCollectionScansRequestHeaders(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/", map[string]string{"X-Client": "mobile-device"}, secureResponse)
	_, w := Split(Privacy().Run(rec, cat))
	if len(w) != 1 || !strings.Contains(w[0].Detail, "deviceInfo") {
		t.Errorf("expected deviceInfo warning, got %v", w)
	}
}

func TestLocationData(t *testing.T) {
	cat := catalogue.Default()
	tests := []struct {
		name string
		url  string
		req  map[string]string
		want bool
	}{
		{"gps header", "https://example.com/", map[string]string{"GPS": "1"}, true},
		{"forwarded", "https://example.com/", map[string]string{"X-Forwarded-For": "203.0.113.1"}, true},
		{"url marker", "https://example.com/?latitude=1", nil, true},
		{"empty header", "https://example.com/", map[string]string{"Geolocation": ""}, false},
		{"lower case key", "https://example.com/", map[string]string{"gps": "1"}, false},
		{"absent", "https://example.com/", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(tt.url, tt.req, secureResponse)
			v, _ := Split(Privacy().Run(rec, cat))
			got := false
			for _, f := range v {
				if f.Category == model.CatLocationData {
					got = true
					if f.Severity != model.SevHigh {
						t.Errorf("expected HIGH, got %s", f.Severity)
					}
				}
			}
			if got != tt.want {
				t.Errorf("expected location violation=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestLocationDetailIncludesOriginCountry(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/", map[string]string{"X-Forwarded-For": "203.0.113.1"}, secureResponse)
	rec.OriginCountry = "FR"
	fs := checkLocationData(rec, cat)
	if len(fs) != 1 || !strings.HasSuffix(fs[0].Detail, "(origin FR)") {
		t.Errorf("expected origin in detail, got %v", fs)
	}
}

func TestThirdPartyAndSensitive(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/analytics/payment", nil, secureResponse)
	v, _ := Split(Privacy().Run(rec, cat))
	if got := categories(v); got != "ThirdPartySharing,SensitiveData" {
		t.Fatalf("unexpected violations %s", got)
	}
	if v[0].Severity != model.SevMedium || v[1].Severity != model.SevHigh {
		t.Errorf("unexpected severities %s %s", v[0].Severity, v[1].Severity)
	}
	if v[1].Detail != "Potential creditCard data transmission detected" {
		t.Errorf("unexpected detail %q", v[1].Detail)
	}
}

func TestAutomatedAccessGoogleBot(t *testing.T) {
	cat := catalogue.Default()
	rec := record("https://example.com/", map[string]string{"User-Agent": "GoogleBot/2.1"}, secureResponse)
	v, w := Split(ToS().Run(rec, cat))
	if len(v) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d", len(v))
	}
	if v[0].Category != model.CatAutomatedAccess || v[0].Severity != model.SevHigh {
		t.Errorf("expected HIGH AutomatedAccess, got %s %s", v[0].Severity, v[0].Category)
	}
	if len(w) != 0 {
		t.Errorf("expected no warnings, got %s", categories(w))
	}
}

func TestToSBattery(t *testing.T) {
	cat := catalogue.Default()
	tests := []struct {
		name       string
		url        string
		req        map[string]string
		resp       map[string]string
		violations string
		warnings   string
	}{
		{"crawler", "https://example.com/", map[string]string{"User-Agent": "web-CRAWLER"}, nil, "AutomatedAccess", ""},
		{"api abuse", "https://example.com/scrape/items", nil, nil, "APIAbuse", ""},
		{"extraction url", "https://example.com/list?format=json", nil, nil, "", "ContentExtraction"},
		{"extraction accept", "https://example.com/list", map[string]string{"Accept": "application/json"}, nil, "", "ContentExtraction"},
		{"debug header", "https://example.com/", map[string]string{"X-Debug-Token": "abc"}, nil, "ReverseEngineering", ""},
		{"empty debug header", "https://example.com/", map[string]string{"X-Debug": ""}, nil, "", ""},
		{"ai training", "https://example.com/dataset/1", nil, nil, "AITraining", ""},
		{"bulk", "https://example.com/", nil, map[string]string{"content-length": "10000001"}, "", "BulkDownload"},
		{"bulk at limit", "https://example.com/", nil, map[string]string{"content-length": "10000000"}, "", ""},
		{"bulk wrong case", "https://example.com/", nil, map[string]string{"Content-Length": "99999999"}, "", ""},
		{"combined", "https://example.com/bulk/train/", map[string]string{"User-Agent": "bot"}, nil, "AutomatedAccess,APIAbuse,AITraining", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, w := Split(ToS().Run(record(tt.url, tt.req, tt.resp), cat))
			if got := categories(v); got != tt.violations {
				t.Errorf("violations: expected %q, got %q", tt.violations, got)
			}
			if got := categories(w); got != tt.warnings {
				t.Errorf("warnings: expected %q, got %q", tt.warnings, got)
			}
		})
	}
}

func TestRunConcurrentMatchesRun(t *testing.T) {
	cat := catalogue.Default()
	recs := []model.ExchangeRecord{
		record("http://example.com/analytics/search?latitude=1&card=2", map[string]string{"User-Agent": "bot", "X-Debug": "1"}, nil),
		record("https://example.com/dataset/bulk/?format=json", map[string]string{"Accept": "application/json"}, map[string]string{"content-length": "20000000", "Cache-Control": "max-age=99999999"}),
		record("https://example.com/", nil, secureResponse),
	}
	for _, b := range []*Battery{Privacy(), ToS()} {
		for _, rec := range recs {
			seq := b.Run(rec, cat)
			for i := 0; i < 20; i++ {
				par, err := b.RunConcurrent(context.Background(), rec, cat)
				if err != nil {
					t.Fatalf("RunConcurrent: %v", err)
				}
				if !reflect.DeepEqual(seq, par) {
					t.Fatalf("%s: concurrent result differs\nseq=%v\npar=%v", b.Domain, seq, par)
				}
			}
		}
	}
}

func TestRunConcurrentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Privacy().RunConcurrent(ctx, record("https://example.com/", nil, nil), catalogue.Default())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestForDomain(t *testing.T) {
	b, err := ForDomain(model.DomainToS)
	if err != nil || b.Domain != model.DomainToS {
		t.Fatalf("unexpected battery %v, %v", b, err)
	}
	if _, err := ForDomain("gdpr"); err == nil {
		t.Error("expected error for unknown domain")
	}
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"123", 123, true},
		{"  42abc", 42, true},
		{"-5", -5, true},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999999", 1 << 62, true},
	}
	for _, tt := range tests {
		n, ok := leadingInt(tt.in)
		if ok != tt.ok || (ok && n != tt.want) {
			t.Errorf("leadingInt(%q) = %d,%v want %d,%v", tt.in, n, ok, tt.want, tt.ok)
		}
	}
}
