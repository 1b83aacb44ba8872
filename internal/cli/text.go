package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/client"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

var textRemote string

func init() {
	rootCmd.AddCommand(textCmd)
	textCmd.Flags().StringVar(&textRemote, "remote", "", "Evaluate on a running gRPC server (host:port)")
}

var textCmd = &cobra.Command{
	Use:   "text <words...>",
	Short: "Score text for sensitive content",
	Long: "Sends the text to the configured scorer and prints the score, the\n" +
		"message and whether the warning banner would be shown.",
	Args: cobra.MinimumNArgs(1),
	RunE: runText,
}

func runText(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var ev model.TextEvaluation
	if textRemote != "" {
		c, err := client.New(textRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		if ev, err = c.EvaluateText(ctx, text); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ev)
	}

	err := withPipeline(ctx, cmd.ErrOrStderr(), func(p *pipeline.Pipeline) error {
		res, err := p.Session.Submit(ctx, text)
		if err != nil {
			return err
		}
		ev = model.TextEvaluation{Result: res, Visible: p.Session.Visible(res)}
		return nil
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ev)
}
