package sensitivity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/ppiankov/consentwatch/internal/model"
)

const (
	// DefaultTimeout bounds one scorer call.
	DefaultTimeout = 10 * time.Second
	// DefaultThreshold is the score above which the banner is shown.
	DefaultThreshold = 75.0
)

const payloadSchemaJSON = `{
  "type": "object",
  "required": ["score", "message"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "message": {"type": "string", "minLength": 1},
    "recommendation": {"type": "string"}
  }
}`

var payloadSchema = mustCompile(payloadSchemaJSON)

func mustCompile(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("sensitivity: compile payload schema: %v", err))
	}
	return schema
}

// Evaluator validates scorer answers and applies the banner threshold.
// A nil Scorer leaves the evaluator unconfigured: every call fails with
// ErrUnconfigured and nothing is sent anywhere.
type Evaluator struct {
	Scorer    Scorer
	Timeout   time.Duration
	Threshold float64
}

// NewEvaluator fills zero timeout and threshold with the defaults. Set
// Threshold afterwards to use an explicit 0.
func NewEvaluator(s Scorer, timeout time.Duration, threshold float64) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Evaluator{Scorer: s, Timeout: timeout, Threshold: threshold}
}

// Configured reports whether a scorer is available.
func (e *Evaluator) Configured() bool {
	return e != nil && e.Scorer != nil
}

// Evaluate scores text. It never returns a partially valid result.
func (e *Evaluator) Evaluate(ctx context.Context, text string) (model.SensitivityResult, error) {
	if !e.Configured() {
		return model.SensitivityResult{}, fail(KindUnconfigured, nil)
	}
	if err := ctx.Err(); err != nil {
		return model.SensitivityResult{}, fail(KindCancelled, err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := e.Scorer.Score(callCtx, text)
	if err != nil {
		// The caller's own cancellation wins over whatever the transport reported.
		if errors.Is(ctx.Err(), context.Canceled) {
			return model.SensitivityResult{}, fail(KindCancelled, ctx.Err())
		}
		var me *malformedError
		if errors.As(err, &me) {
			return model.SensitivityResult{}, fail(KindMalformed, err)
		}
		return model.SensitivityResult{}, fail(KindTransport, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return model.SensitivityResult{}, fail(KindCancelled, ctx.Err())
	}

	res, err := Parse(raw)
	if err != nil {
		return model.SensitivityResult{}, fail(KindMalformed, err)
	}
	return res, nil
}

// Visible reports whether res should raise the banner.
func (e *Evaluator) Visible(res model.SensitivityResult) bool {
	threshold := e.Threshold
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return res.Score > threshold
}

// Parse validates a raw scorer payload against the result schema.
func Parse(raw []byte) (model.SensitivityResult, error) {
	raw = []byte(cleanJSON(string(raw)))
	if !json.Valid(raw) {
		return model.SensitivityResult{}, fmt.Errorf("response is not JSON: %s", truncate(string(raw), 200))
	}
	result := payloadSchema.ValidateJSON(raw)
	if !result.IsValid() {
		return model.SensitivityResult{}, fmt.Errorf("schema validation failed: %v", result.Errors)
	}

	var res model.SensitivityResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.SensitivityResult{}, fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(res.Message) == "" {
		return model.SensitivityResult{}, fmt.Errorf("message is blank")
	}
	return res, nil
}
