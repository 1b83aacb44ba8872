// Package pipeline assembles the evaluation stack from a Config. Every front
// end (CLI, HTTP, gRPC, MCP, proxy) runs on one Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/geoip"
	"github.com/ppiankov/consentwatch/internal/history"
	"github.com/ppiankov/consentwatch/internal/notify"
	"github.com/ppiankov/consentwatch/internal/ratelimit"
	"github.com/ppiankov/consentwatch/internal/sensitivity"
)

// Pipeline owns the engine, the text session and the resources behind them.
type Pipeline struct {
	Engine  *engine.Engine
	Session *sensitivity.Session

	store    history.Store
	locator  *geoip.Locator
	notifier *notify.Swap
	log      io.Writer

	mu    sync.Mutex
	hooks []*notify.Webhooks
}

// Build opens the history store, the optional GeoIP database and the
// catalogue overlay named by cfg. log defaults to stderr.
func Build(ctx context.Context, cfg *config.Config, log io.Writer) (*Pipeline, error) {
	if log == nil {
		log = os.Stderr
	}
	cat, err := catalogue.Load(cfg.Catalogue)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	p := &Pipeline{store: store, notifier: &notify.Swap{}, log: log}

	opts := engine.Options{Concurrent: cfg.ConcurrentChecks, Log: log}
	if cfg.GeoIP.CityDB != "" {
		loc, err := geoip.Open(cfg.GeoIP.CityDB)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open geoip database: %w", err)
		}
		p.locator = loc
		opts.Locator = loc
	}

	p.setAlerts(cfg.Alerts)
	p.Engine = engine.New(cat, store, p.notifier, opts)
	p.Session = sensitivity.NewSession(NewEvaluator(cfg), p.notifier, log)
	return p, nil
}

// NewEvaluator builds the text evaluator. Without an API key the evaluator
// stays unconfigured and never contacts the scorer.
func NewEvaluator(cfg *config.Config) *sensitivity.Evaluator {
	var scorer sensitivity.Scorer
	if cfg.ScorerConfigured() {
		scorer = &sensitivity.ChatScorer{
			APIURL:    cfg.Scorer.APIURL,
			APIKey:    cfg.Scorer.APIKey,
			Model:     cfg.Scorer.Model,
			MaxTokens: cfg.Scorer.MaxTokens,
		}
		if cfg.Scorer.RateLimit.Enabled() {
			scorer = limitScorer(scorer, ratelimit.New(cfg.Scorer.RateLimit))
		}
	}
	e := sensitivity.NewEvaluator(scorer, cfg.Scorer.Timeout, cfg.Scorer.Threshold)
	// Validate bounds the threshold to [0, 100]; 0 means any positive score.
	e.Threshold = cfg.Scorer.Threshold
	return e
}

// limitScorer rejects calls over the limit before they reach s.
func limitScorer(s sensitivity.Scorer, l *ratelimit.Limiter) sensitivity.Scorer {
	return sensitivity.ScorerFunc(func(ctx context.Context, text string) ([]byte, error) {
		if r := l.Allow(time.Now()); r.Exceeded {
			return nil, errors.New(r.Reason)
		}
		return s.Score(ctx, text)
	})
}

// Reload applies the parts of cfg that can change without a restart: the
// catalogue overlay and the alert webhooks.
func (p *Pipeline) Reload(cfg *config.Config) error {
	cat, err := catalogue.Load(cfg.Catalogue)
	if err != nil {
		return fmt.Errorf("failed to reload catalogue: %w", err)
	}
	p.Engine.SetCatalogue(cat)
	p.setAlerts(cfg.Alerts)
	return nil
}

func (p *Pipeline) setAlerts(alerts []notify.WebhookConfig) {
	hooks := notify.NewWebhooks(alerts, p.log)
	if hooks == nil {
		p.notifier.Set(notify.NewWriter(p.log))
		return
	}
	p.mu.Lock()
	p.hooks = append(p.hooks, hooks)
	p.mu.Unlock()
	p.notifier.Set(notify.Multi{notify.NewWriter(p.log), hooks})
}

// Close waits for pending webhook deliveries and releases the store and the
// GeoIP database.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	hooks := p.hooks
	p.mu.Unlock()
	for _, h := range hooks {
		h.Wait()
	}
	return errors.Join(p.store.Close(), p.locator.Close())
}
