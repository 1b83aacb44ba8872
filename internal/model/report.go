package model

// Categories returns the categories of the given findings in order.
func Categories(findings []Finding) []Category {
	out := make([]Category, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Category)
	}
	return out
}

// Equivalent reports whether two reports carry the same content, ignoring
// report IDs and every timestamp.
func Equivalent(a, b *Report) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Domain != b.Domain || a.AnalyzedRequest != b.AnalyzedRequest || a.Site != b.Site {
		return false
	}
	if a.Summary != b.Summary {
		return false
	}
	return sameFindings(a.Violations, b.Violations) && sameFindings(a.Warnings, b.Warnings)
}

func sameFindings(a, b []Finding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Category != y.Category || x.Detail != y.Detail || x.Severity != y.Severity ||
			x.Reference != y.Reference || x.RelatedRequest != y.RelatedRequest {
			return false
		}
	}
	return true
}
