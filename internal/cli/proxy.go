package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/pipeline"
	"github.com/ppiankov/consentwatch/internal/proxy"
)

var proxyAddr string

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyAddr, "addr", "", "Listen address (default: listen.proxy from config)")
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Start a forward proxy that evaluates every HTTP exchange",
	Long: "Forward HTTP proxy that captures each plain-HTTP exchange and runs it\n" +
		"through the privacy and ToS batteries. HTTPS CONNECT tunnels pass through.\n" +
		"Usage: HTTP_PROXY=http://127.0.0.1:8492 curl http://example.com/",
	RunE: runProxy,
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	addr := proxyAddr
	if addr == "" {
		addr = cfg.Listen.Proxy
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := cmd.ErrOrStderr()
	p, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := proxy.NewServer(proxy.Config{
		Addr:        addr,
		Log:         log,
		HeaderNames: func() []string { return p.Engine.Catalogue().HeaderNames() },
	}, p.Engine)

	fmt.Fprintf(log, "consentwatch proxy listening on %s\n", addr)
	fmt.Fprintf(log, "Set HTTP_PROXY=http://%s to route traffic\n", addr)
	fmt.Fprintln(log, "Press Ctrl+C to stop")
	fmt.Fprintln(log)

	err = srv.Start(ctx)
	srv.Wait()
	return err
}
