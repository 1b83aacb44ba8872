package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/client"
	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

var (
	evaluateDomain string
	evaluateRemote string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evaluateDomain, "domain", "", "Evaluate one domain only (privacy|tos)")
	evaluateCmd.Flags().StringVar(&evaluateRemote, "remote", "", "Evaluate on a running gRPC server (host:port)")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file|-]",
	Short: "Evaluate one captured exchange",
	Long: "Reads a capture as JSON (url, method, requestHeaders, responseHeaders,\n" +
		"timeStamp) from a file or stdin, runs the privacy and ToS batteries and\n" +
		"prints the reports. Reports are appended to the configured history.",
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	src := "-"
	if len(args) == 1 {
		src = args[0]
	}
	capture, err := readCapture(cmd.InOrStdin(), src)
	if err != nil {
		return err
	}

	var domain model.Domain
	if evaluateDomain != "" {
		d, ok := model.ParseDomain(evaluateDomain)
		if !ok {
			return fmt.Errorf("unknown domain %q", evaluateDomain)
		}
		domain = d
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var out engine.Outcome
	if evaluateRemote != "" {
		c, err := client.New(evaluateRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		out, err = c.EvaluateExchange(ctx, capture, string(domain))
		if err != nil {
			return err
		}
	} else {
		err = withPipeline(ctx, cmd.ErrOrStderr(), func(p *pipeline.Pipeline) error {
			var evalErr error
			out, evalErr = evaluateLocal(ctx, p.Engine, capture, domain)
			return evalErr
		})
		if err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func evaluateLocal(ctx context.Context, e *engine.Engine, c extract.Capture, domain model.Domain) (engine.Outcome, error) {
	if domain == "" {
		return e.Process(ctx, c)
	}
	report, err := e.ProcessDomain(ctx, c, domain)
	if err != nil {
		return engine.Outcome{}, err
	}
	out := engine.Outcome{Skipped: report == nil}
	switch domain {
	case model.DomainPrivacy:
		out.Privacy = report
	case model.DomainToS:
		out.ToS = report
	}
	return out, nil
}

func readCapture(stdin io.Reader, src string) (extract.Capture, error) {
	var data []byte
	var err error
	if src == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return extract.Capture{}, fmt.Errorf("failed to read capture: %w", err)
	}
	var c extract.Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return extract.Capture{}, fmt.Errorf("failed to parse capture: %w", err)
	}
	if strings.TrimSpace(c.URL) == "" {
		return extract.Capture{}, fmt.Errorf("capture has no url")
	}
	return c, nil
}

// withPipeline builds the pipeline from the process config, runs fn and
// closes it.
func withPipeline(ctx context.Context, log io.Writer, fn func(*pipeline.Pipeline) error) (err error) {
	p, err := pipeline.Build(ctx, config.Get(), log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(p)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
