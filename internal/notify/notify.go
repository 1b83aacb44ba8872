// Package notify delivers compliance signals to the user-visible sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/consentwatch/internal/model"
)

// Notifier receives signals for high-risk reports and sensitive text.
type Notifier interface {
	Notify(ctx context.Context, sig model.Signal) error
}

// Nop discards every signal.
type Nop struct{}

func (Nop) Notify(context.Context, model.Signal) error { return nil }

// Writer prints one line per signal, the way the banner would show it.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Writer on out, or on stderr when out is nil.
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		out = os.Stderr
	}
	return &Writer{out: out}
}

func (w *Writer) Notify(_ context.Context, sig model.Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.out, "consentwatch: [%s] %s: %s\n", sig.Severity, sig.Category, sig.Message)
	return err
}

// Multi forwards each signal to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, sig model.Signal) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, sig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, sig model.Signal) error

func (f Func) Notify(ctx context.Context, sig model.Signal) error { return f(ctx, sig) }

// Swap forwards to a notifier that can be replaced while signals are in flight.
type Swap struct {
	current atomic.Pointer[target]
}

type target struct{ n Notifier }

// Set replaces the target. A nil notifier drops signals.
func (s *Swap) Set(n Notifier) {
	s.current.Store(&target{n: n})
}

func (s *Swap) Notify(ctx context.Context, sig model.Signal) error {
	t := s.current.Load()
	if t == nil || t.n == nil {
		return nil
	}
	return t.n.Notify(ctx, sig)
}
