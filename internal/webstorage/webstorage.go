// Package webstorage reports which cookies and local-storage keys of an
// exchange hold preference, identity or tracking state. Results are
// informational and carry no risk level.
package webstorage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/model"
)

// Insight groups user-facing privacy control links.
type Insight struct {
	Category string                     `json:"category"`
	Details  []catalogue.PrivacyControl `json:"details"`
}

// Summary counts the findings of a web-storage report.
type Summary struct {
	TotalFindings            int              `json:"total_findings"`
	Categories               []model.Category `json:"categories"`
	PrivacyControlsAvailable int              `json:"privacy_controls_available"`
}

// Report is the outcome of Analyze.
type Report struct {
	Findings  []model.Finding `json:"findings"`
	Insights  []Insight       `json:"insights"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   Summary         `json:"summary"`
}

// Analyze inspects cookie names and local-storage keys. Names are visited in
// sorted order so the output is deterministic.
func Analyze(cookies, localStorage map[string]string, cat *catalogue.Catalogue) Report {
	now := time.Now().UTC()
	r := Report{Findings: []model.Finding{}, Timestamp: now}

	names := sortedKeys(cookies)
	for _, fam := range cat.CookieFamilies {
		var matches []string
		for _, name := range names {
			if containsAny(name, fam.Patterns) {
				matches = append(matches, name)
			}
		}
		if len(matches) == 0 {
			continue
		}
		r.Findings = append(r.Findings, model.Finding{
			Category:  model.CatCookieUsage,
			Detail:    fmt.Sprintf("Found %s related cookies: %s", fam.Name, strings.Join(matches, ", ")),
			Reference: cat.Reference(model.CatCookieUsage),
			Timestamp: now,
		})
	}

	for _, key := range sortedKeys(localStorage) {
		lower := strings.ToLower(key)
		for _, marker := range cat.StorageMarkers {
			if strings.Contains(lower, marker) {
				r.Findings = append(r.Findings, model.Finding{
					Category:  model.CatLocalStorage,
					Detail:    fmt.Sprintf("Found item related to %s: %s", marker, key),
					Reference: cat.Reference(model.CatLocalStorage),
					Timestamp: now,
				})
				break
			}
		}
	}

	if len(cat.PrivacyControls) > 0 {
		r.Insights = append(r.Insights, Insight{Category: "Privacy Controls", Details: cat.PrivacyControls})
	}

	r.Summary = Summary{
		TotalFindings:            len(r.Findings),
		Categories:               distinct(model.Categories(r.Findings)),
		PrivacyControlsAvailable: len(r.Insights),
	}
	return r
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func distinct(cats []model.Category) []model.Category {
	seen := make(map[model.Category]bool, len(cats))
	out := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
