package model

import (
	"strings"
	"time"
)

// Domain names one of the independent policy catalogues.
type Domain string

const (
	DomainPrivacy Domain = "privacy"
	DomainToS     Domain = "tos"
)

// Domains lists every policy domain in evaluation order.
var Domains = []Domain{DomainPrivacy, DomainToS}

// ParseDomain accepts a domain name in any case.
func ParseDomain(s string) (Domain, bool) {
	switch Domain(strings.ToLower(strings.TrimSpace(s))) {
	case DomainPrivacy:
		return DomainPrivacy, true
	case DomainToS:
		return DomainToS, true
	}
	return "", false
}

// SignalCategory is the label used when a report of this domain is surfaced.
func (d Domain) SignalCategory() string {
	switch d {
	case DomainPrivacy:
		return "Privacy Violation"
	case DomainToS:
		return "ToS Violation"
	default:
		return "Violation"
	}
}

// Category classifies a finding.
type Category string

const (
	CatDataCollection     Category = "DataCollection"
	CatLocationData       Category = "LocationData"
	CatThirdPartySharing  Category = "ThirdPartySharing"
	CatSensitiveData      Category = "SensitiveData"
	CatSecurity           Category = "Security"
	CatDataRetention      Category = "DataRetention"
	CatAutomatedAccess    Category = "AutomatedAccess"
	CatAPIAbuse           Category = "APIAbuse"
	CatContentExtraction  Category = "ContentExtraction"
	CatReverseEngineering Category = "ReverseEngineering"
	CatAITraining         Category = "AITraining"
	CatBulkDownload       Category = "BulkDownload"

	// Web-storage analysis only.
	CatCookieUsage  Category = "CookieUsage"
	CatLocalStorage Category = "LocalStorage"
)

// Severity grades a violation. Warnings carry no severity.
type Severity string

const (
	SevHigh   Severity = "HIGH"
	SevMedium Severity = "MEDIUM"
	SevLow    Severity = "LOW"
)

// RiskLevel is the derived tri-state summary of a report.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// ExchangeRecord is the normalized view of one captured HTTP exchange.
// It is built fresh for each evaluation and never mutated by checks.
type ExchangeRecord struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	RequestHeaders  map[string]string `json:"request_headers"`
	ResponseHeaders map[string]string `json:"response_headers"`
	Timestamp       time.Time         `json:"timestamp"`
	HasBody         bool              `json:"has_body,omitempty"`

	// Site is the registrable domain of the URL host (eTLD+1).
	Site string `json:"site,omitempty"`

	// OriginCountry is the ISO code resolved for X-Forwarded-For, if any.
	OriginCountry string `json:"origin_country,omitempty"`

	Cookies      map[string]string `json:"cookies,omitempty"`
	LocalStorage map[string]string `json:"local_storage,omitempty"`
}

// Finding is a single detected condition. A finding with a severity is a
// violation; one without is a warning.
type Finding struct {
	Category       Category  `json:"category"`
	Detail         string    `json:"detail"`
	Severity       Severity  `json:"severity,omitempty"`
	Reference      string    `json:"reference"`
	Timestamp      time.Time `json:"timestamp"`
	RelatedRequest string    `json:"related_request"`
}

// IsViolation reports whether the finding carries a severity.
func (f Finding) IsViolation() bool {
	return f.Severity != ""
}

// Summary holds the report counters and derived risk level.
type Summary struct {
	TotalViolations int       `json:"total_violations"`
	TotalWarnings   int       `json:"total_warnings"`
	RiskLevel       RiskLevel `json:"risk_level"`
}

// Report is the complete result of evaluating one exchange against one domain.
type Report struct {
	ID              string    `json:"id"`
	Domain          Domain    `json:"domain"`
	Violations      []Finding `json:"violations"`
	Warnings        []Finding `json:"warnings"`
	AnalyzedRequest string    `json:"analyzed_request"`
	Site            string    `json:"site,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Summary         Summary   `json:"summary"`
}

// SensitivityResult is the validated answer of the text scorer.
type SensitivityResult struct {
	Score          float64 `json:"score"`
	Message        string  `json:"message"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// TextEvaluation is a sensitivity result with the banner decision applied.
type TextEvaluation struct {
	Result  SensitivityResult `json:"result"`
	Visible bool              `json:"visible"`
}

// HistoryPage lists the stored reports of one domain, oldest first.
type HistoryPage struct {
	Domain  Domain    `json:"domain"`
	Reports []*Report `json:"reports"`
}

// Signal is what the notification sink receives.
type Signal struct {
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// DeriveRiskLevel folds finding counts into a risk level:
// HIGH with any violation, MEDIUM with only warnings, LOW otherwise.
func DeriveRiskLevel(violations, warnings int) RiskLevel {
	switch {
	case violations > 0:
		return RiskHigh
	case warnings > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}
