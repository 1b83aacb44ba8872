// Package engine folds check battery findings into reports and performs the
// report side effects: history append and high-risk notification.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/checks"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/history"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/notify"
	"github.com/ppiankov/consentwatch/internal/webstorage"
)

// Options tune an Engine. The zero value is usable.
type Options struct {
	// Concurrent runs each battery with RunConcurrent.
	Concurrent bool
	// Locator enriches records with the origin country of X-Forwarded-For.
	Locator extract.Locator
	// Log receives side-effect failures. Defaults to stderr.
	Log io.Writer
	// Now stamps reports. Defaults to time.Now.
	Now func() time.Time
}

// Outcome is the result of processing one capture.
type Outcome struct {
	Skipped bool               `json:"skipped"`
	Privacy *model.Report      `json:"privacy,omitempty"`
	ToS     *model.Report      `json:"tos,omitempty"`
	Storage *webstorage.Report `json:"storage,omitempty"`
}

// Engine evaluates exchanges. It is safe for concurrent use.
type Engine struct {
	cat      atomic.Pointer[catalogue.Catalogue]
	history  history.Store
	notifier notify.Notifier
	opts     Options
}

// New builds an engine. A nil catalogue means the built-in one; nil store and
// notifier disable the corresponding side effect.
func New(cat *catalogue.Catalogue, store history.Store, n notify.Notifier, opts Options) *Engine {
	if cat == nil {
		cat = catalogue.Default()
	}
	if opts.Log == nil {
		opts.Log = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{history: store, notifier: n, opts: opts}
	e.cat.Store(cat)
	return e
}

// Catalogue returns the catalogue in use.
func (e *Engine) Catalogue() *catalogue.Catalogue { return e.cat.Load() }

// SetCatalogue swaps the catalogue for subsequent evaluations.
func (e *Engine) SetCatalogue(c *catalogue.Catalogue) {
	if c != nil {
		e.cat.Store(c)
	}
}

// Evaluate runs the battery for domain against rec and returns the report.
// History and notification failures are logged and never returned.
func (e *Engine) Evaluate(ctx context.Context, rec model.ExchangeRecord, domain model.Domain) (*model.Report, error) {
	battery, err := checks.ForDomain(domain)
	if err != nil {
		return nil, err
	}
	cat := e.cat.Load()
	now := e.opts.Now().UTC()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}

	var findings []model.Finding
	if e.opts.Concurrent {
		findings, err = battery.RunConcurrent(ctx, rec, cat)
		if err != nil {
			return nil, fmt.Errorf("run %s checks: %w", domain, err)
		}
	} else {
		findings = battery.Run(rec, cat)
	}

	report := Aggregate(domain, rec, findings)
	report.ID = uuid.NewString()
	report.Timestamp = now

	e.record(ctx, report)
	e.forward(ctx, report)
	return report, nil
}

// Process extracts c and evaluates it against every domain. Skipped
// exchanges produce no reports and no side effects.
func (e *Engine) Process(ctx context.Context, c extract.Capture) (Outcome, error) {
	cat := e.cat.Load()
	rec, ok := extract.New(cat.StaticAssetExtensions, e.opts.Locator).Extract(c)
	if !ok {
		return Outcome{Skipped: true}, nil
	}

	var out Outcome
	for _, d := range model.Domains {
		r, err := e.Evaluate(ctx, rec, d)
		if err != nil {
			return Outcome{}, err
		}
		switch d {
		case model.DomainPrivacy:
			out.Privacy = r
		case model.DomainToS:
			out.ToS = r
		}
	}
	if len(rec.Cookies) > 0 || len(rec.LocalStorage) > 0 {
		storage := webstorage.Analyze(rec.Cookies, rec.LocalStorage, cat)
		out.Storage = &storage
	}
	return out, nil
}

// ProcessDomain extracts c and evaluates a single domain.
// A nil report with a nil error means the exchange was skipped.
func (e *Engine) ProcessDomain(ctx context.Context, c extract.Capture, domain model.Domain) (*model.Report, error) {
	rec, ok := extract.New(e.cat.Load().StaticAssetExtensions, e.opts.Locator).Extract(c)
	if !ok {
		return nil, nil
	}
	return e.Evaluate(ctx, rec, domain)
}

// History lists the stored reports of domain, oldest first.
func (e *Engine) History(ctx context.Context, domain model.Domain) ([]history.Entry, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.List(ctx, domain)
}

// Aggregate folds findings into a report without ID or report timestamp.
func Aggregate(domain model.Domain, rec model.ExchangeRecord, findings []model.Finding) *model.Report {
	violations, warnings := checks.Split(findings)
	return &model.Report{
		Domain:          domain,
		Violations:      violations,
		Warnings:        warnings,
		AnalyzedRequest: rec.URL,
		Site:            rec.Site,
		Summary: model.Summary{
			TotalViolations: len(violations),
			TotalWarnings:   len(warnings),
			RiskLevel:       model.DeriveRiskLevel(len(violations), len(warnings)),
		},
	}
}

func (e *Engine) record(ctx context.Context, r *model.Report) {
	if e.history == nil {
		return
	}
	if err := e.history.Append(ctx, r); err != nil {
		fmt.Fprintf(e.opts.Log, "engine: history append %s: %v\n", r.Domain, err)
	}
}

// forward surfaces the first violation of a HIGH report.
func (e *Engine) forward(ctx context.Context, r *model.Report) {
	if e.notifier == nil || r.Summary.RiskLevel != model.RiskHigh || len(r.Violations) == 0 {
		return
	}
	sig := model.Signal{
		Category: r.Domain.SignalCategory(),
		Message:  r.Violations[0].Detail,
		Severity: model.SevHigh,
	}
	if err := e.notifier.Notify(ctx, sig); err != nil {
		fmt.Fprintf(e.opts.Log, "engine: notify %s: %v\n", r.Domain, err)
	}
}
