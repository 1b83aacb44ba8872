// Package checks implements the per-domain check batteries. Every check is a
// pure function of the exchange record and the catalogue.
package checks

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/model"
)

// Check is one named predicate in a battery.
type Check struct {
	Name string
	Run  func(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding
}

func violation(rec model.ExchangeRecord, cat *catalogue.Catalogue, c model.Category, sev model.Severity, detail string) model.Finding {
	return model.Finding{
		Category:       c,
		Detail:         detail,
		Severity:       sev,
		Reference:      cat.Reference(c),
		Timestamp:      rec.Timestamp,
		RelatedRequest: rec.URL,
	}
}

func warning(rec model.ExchangeRecord, cat *catalogue.Catalogue, c model.Category, detail string) model.Finding {
	return violation(rec, cat, c, "", detail)
}

// headerJSON renders request headers the way regex scans see them.
// encoding/json sorts map keys, so the output is stable.
func headerJSON(h map[string]string) string {
	if h == nil {
		h = map[string]string{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// leadingInt parses the integer prefix of s, skipping leading whitespace and
// accepting an optional sign. ok is false when no digit follows.
func leadingInt(s string) (n int64, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		ok = true
		if n > (1<<62)/10 {
			// Saturate instead of overflowing; anything this large is over any limit.
			n = 1 << 62
			continue
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, ok
}
