package model

import (
	"testing"
	"time"
)

func TestDeriveRiskLevel(t *testing.T) {
	tests := []struct {
		violations, warnings int
		want                 RiskLevel
	}{
		{0, 0, RiskLow},
		{0, 3, RiskMedium},
		{1, 0, RiskHigh},
		{2, 5, RiskHigh},
	}
	for _, tt := range tests {
		if got := DeriveRiskLevel(tt.violations, tt.warnings); got != tt.want {
			t.Errorf("DeriveRiskLevel(%d, %d) = %s, want %s", tt.violations, tt.warnings, got, tt.want)
		}
	}
}

func TestParseDomain(t *testing.T) {
	for _, in := range []string{"privacy", "PRIVACY", " Privacy "} {
		if d, ok := ParseDomain(in); !ok || d != DomainPrivacy {
			t.Errorf("ParseDomain(%q) = %q, %v", in, d, ok)
		}
	}
	if d, ok := ParseDomain("ToS"); !ok || d != DomainToS {
		t.Errorf("expected tos, got %q %v", d, ok)
	}
	if _, ok := ParseDomain("cookies"); ok {
		t.Error("expected unknown domain to be rejected")
	}
}

func TestSignalCategory(t *testing.T) {
	if DomainPrivacy.SignalCategory() != "Privacy Violation" {
		t.Errorf("unexpected privacy label %q", DomainPrivacy.SignalCategory())
	}
	if DomainToS.SignalCategory() != "ToS Violation" {
		t.Errorf("unexpected tos label %q", DomainToS.SignalCategory())
	}
}

func TestEquivalentIgnoresIDsAndTimestamps(t *testing.T) {
	finding := func(ts time.Time) Finding {
		return Finding{Category: CatSecurity, Detail: "d", Severity: SevHigh, Reference: "r", Timestamp: ts, RelatedRequest: "http://a"}
	}
	a := &Report{ID: "a", Domain: DomainPrivacy, AnalyzedRequest: "http://a", Timestamp: time.Unix(1, 0),
		Violations: []Finding{finding(time.Unix(1, 0))}, Summary: Summary{TotalViolations: 1, RiskLevel: RiskHigh}}
	b := &Report{ID: "b", Domain: DomainPrivacy, AnalyzedRequest: "http://a", Timestamp: time.Unix(99, 0),
		Violations: []Finding{finding(time.Unix(99, 0))}, Summary: Summary{TotalViolations: 1, RiskLevel: RiskHigh}}

	if !Equivalent(a, b) {
		t.Fatal("expected reports differing only in id/timestamps to be equivalent")
	}

	b.Violations[0].Severity = SevMedium
	if Equivalent(a, b) {
		t.Fatal("expected severity change to break equivalence")
	}
}

func TestFindingIsViolation(t *testing.T) {
	if (Finding{Category: CatDataRetention}).IsViolation() {
		t.Error("warning must not be a violation")
	}
	if !(Finding{Category: CatSecurity, Severity: SevHigh}).IsViolation() {
		t.Error("finding with severity must be a violation")
	}
}
