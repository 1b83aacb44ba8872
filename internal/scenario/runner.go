// Package scenario runs YAML detection scenarios against the check battery.
// Cases are evaluated without history or notification side effects.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/checks"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
)

const skipped = "skipped"

// Run evaluates every case of s against cat. Cases are independent.
func Run(s *Scenario, cat *catalogue.Catalogue) *RunResult {
	if cat == nil {
		cat = catalogue.Default()
	}
	ex := extract.New(cat.StaticAssetExtensions, nil)

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Domain:   strings.ToLower(c.Domain),
			URL:      c.Exchange.URL,
			Expected: describe(strings.ToUpper(c.Expect.Risk), c.Expect.Violations, c.Expect.Warnings),
		}
		if strings.EqualFold(c.Expect.Risk, skipped) {
			cr.Expected = skipped
		}

		actual, reason := evaluate(ex, cat, c)
		cr.Actual = actual
		cr.Reason = reason
		if reason == "" {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

// evaluate returns the actual outcome and, when the case fails, why.
func evaluate(ex *extract.Extractor, cat *catalogue.Catalogue, c Case) (string, string) {
	domain, ok := model.ParseDomain(c.Domain)
	if !ok {
		return "error", fmt.Sprintf("unknown domain %q", c.Domain)
	}
	battery, err := checks.ForDomain(domain)
	if err != nil {
		return "error", err.Error()
	}

	rec, ok := ex.Extract(extract.Capture{
		URL:             c.Exchange.URL,
		Method:          c.Exchange.Method,
		RequestHeaders:  c.Exchange.RequestHeaders,
		ResponseHeaders: c.Exchange.ResponseHeaders,
	})
	if !ok {
		if strings.EqualFold(c.Expect.Risk, skipped) {
			return skipped, ""
		}
		return skipped, "exchange was skipped"
	}

	report := engine.Aggregate(domain, rec, battery.Run(rec, cat))
	violations := categories(report.Violations)
	warnings := categories(report.Warnings)
	actual := describe(string(report.Summary.RiskLevel), violations, warnings)

	switch {
	case strings.EqualFold(c.Expect.Risk, skipped):
		return actual, "expected the exchange to be skipped"
	case !strings.EqualFold(c.Expect.Risk, string(report.Summary.RiskLevel)):
		return actual, fmt.Sprintf("risk %s, expected %s", report.Summary.RiskLevel, strings.ToUpper(c.Expect.Risk))
	case c.Expect.Violations != nil && !equal(c.Expect.Violations, violations):
		return actual, fmt.Sprintf("violations %v, expected %v", violations, c.Expect.Violations)
	case c.Expect.Warnings != nil && !equal(c.Expect.Warnings, warnings):
		return actual, fmt.Sprintf("warnings %v, expected %v", warnings, c.Expect.Warnings)
	}
	return actual, ""
}

// LoadAndRun loads a scenario YAML file and runs it against the catalogue
// overlay at cataloguePath (empty for the built-in catalogue).
func LoadAndRun(path, cataloguePath string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	cat, err := catalogue.Load(cataloguePath)
	if err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}

	result := Run(&s, cat)
	result.File = path
	return result, nil
}

func categories(findings []model.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = string(f.Category)
	}
	return out
}

func describe(risk string, violations, warnings []string) string {
	var b strings.Builder
	b.WriteString(risk)
	if len(violations) > 0 {
		fmt.Fprintf(&b, " violations=%s", strings.Join(violations, ","))
	}
	if len(warnings) > 0 {
		fmt.Fprintf(&b, " warnings=%s", strings.Join(warnings, ","))
	}
	return b.String()
}

func equal(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
