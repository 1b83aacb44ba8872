package sensitivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/notify"
)

// SignalCategory labels sensitivity signals.
const SignalCategory = "Sensitive Text"

// Banner is the state a UI would render.
type Banner struct {
	Visible bool                    `json:"visible"`
	Result  model.SensitivityResult `json:"result"`
}

// Session serializes text evaluations for one input stream. A new Submit
// cancels the one in flight, and only the newest call may change the banner.
type Session struct {
	eval     *Evaluator
	notifier notify.Notifier
	log      io.Writer

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	banner Banner
}

// NewSession binds an evaluator to a notifier. Both notifier and log may be nil.
func NewSession(eval *Evaluator, n notify.Notifier, log io.Writer) *Session {
	if log == nil {
		log = os.Stderr
	}
	return &Session{eval: eval, notifier: n, log: log}
}

// Submit evaluates text as the newest input. A call superseded before it
// finishes returns ErrCancelled even if its scorer already answered.
func (s *Session) Submit(ctx context.Context, text string) (model.SensitivityResult, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	res, err := s.eval.Evaluate(ctx, text)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return model.SensitivityResult{}, fail(KindCancelled, context.Canceled)
	}
	s.cancel = nil
	if err != nil {
		s.mu.Unlock()
		if !errors.Is(err, ErrCancelled) {
			fmt.Fprintf(s.log, "sensitivity: evaluation failed: %v\n", err)
		}
		return model.SensitivityResult{}, err
	}

	prev := s.banner
	s.banner = Banner{Visible: s.eval.Visible(res), Result: res}
	raise := s.banner.Visible && (!prev.Visible || prev.Result.Message != res.Message)
	s.mu.Unlock()

	if raise && s.notifier != nil {
		sig := model.Signal{Category: SignalCategory, Message: res.Message, Severity: model.SevHigh}
		if err := s.notifier.Notify(context.WithoutCancel(ctx), sig); err != nil {
			fmt.Fprintf(s.log, "sensitivity: notify: %v\n", err)
		}
	}
	return res, nil
}

// Clear hides the banner and cancels any evaluation in flight.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	s.banner = Banner{}
}

// Visible reports whether res clears the banner threshold.
func (s *Session) Visible(res model.SensitivityResult) bool {
	return s.eval.Visible(res)
}

// Banner returns the current banner state.
func (s *Session) Banner() Banner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}
