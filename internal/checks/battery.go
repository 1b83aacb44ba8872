package checks

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/model"
)

// Battery is the ordered check set for one policy domain.
type Battery struct {
	Domain model.Domain
	Checks []Check
}

// Privacy returns the privacy-policy battery.
func Privacy() *Battery {
	return &Battery{Domain: model.DomainPrivacy, Checks: PrivacyChecks}
}

// ToS returns the terms-of-service battery.
func ToS() *Battery {
	return &Battery{Domain: model.DomainToS, Checks: ToSChecks}
}

// ForDomain returns the battery for d.
func ForDomain(d model.Domain) (*Battery, error) {
	switch d {
	case model.DomainPrivacy:
		return Privacy(), nil
	case model.DomainToS:
		return ToS(), nil
	default:
		return nil, fmt.Errorf("unknown domain %q", d)
	}
}

// Run executes every check in table order and concatenates the findings.
func (b *Battery) Run(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	var out []model.Finding
	for _, c := range b.Checks {
		out = append(out, c.Run(rec, cat)...)
	}
	return out
}

// RunConcurrent executes the checks in parallel. Each check writes into its
// own slot and slots are merged in table order, so the result equals Run.
func (b *Battery) RunConcurrent(ctx context.Context, rec model.ExchangeRecord, cat *catalogue.Catalogue) ([]model.Finding, error) {
	slots := make([][]model.Finding, len(b.Checks))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range b.Checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = c.Run(rec, cat)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Finding
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

// Split separates violations from warnings, keeping relative order.
func Split(findings []model.Finding) (violations, warnings []model.Finding) {
	violations = []model.Finding{}
	warnings = []model.Finding{}
	for _, f := range findings {
		if f.IsViolation() {
			violations = append(violations, f)
		} else {
			warnings = append(warnings, f)
		}
	}
	return violations, warnings
}
