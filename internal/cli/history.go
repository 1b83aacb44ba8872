package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/client"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

var historyRemote string

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyRemote, "remote", "", "Read from a running gRPC server (host:port)")
}

var historyCmd = &cobra.Command{
	Use:   "history <privacy|tos>",
	Short: "Print the stored reports of a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	domain, ok := model.ParseDomain(args[0])
	if !ok {
		return fmt.Errorf("unknown domain %q", args[0])
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if historyRemote != "" {
		c, err := client.New(historyRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		page, err := c.History(ctx, string(domain))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	}

	page := model.HistoryPage{Domain: domain, Reports: []*model.Report{}}
	err := withPipeline(ctx, cmd.ErrOrStderr(), func(p *pipeline.Pipeline) error {
		entries, err := p.Engine.History(ctx, domain)
		if err != nil {
			return err
		}
		for _, e := range entries {
			page.Reports = append(page.Reports, e.Report)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), page)
}
