package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/consentwatch/internal/config"
	"github.com/ppiankov/consentwatch/internal/httpapi"
	"github.com/ppiankov/consentwatch/internal/pipeline"
	"github.com/ppiankov/consentwatch/internal/server"
)

var (
	serveHTTP string
	serveGRPC string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "HTTP listen address (default: listen.http from config, \"off\" to disable)")
	serveCmd.Flags().StringVar(&serveGRPC, "grpc", "", "gRPC listen address (default: listen.grpc from config, \"off\" to disable)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC evaluation servers",
	Long: "Runs consentwatch as a long-lived service. The JSON API and the gRPC\n" +
		"service share one engine, one history store and one text session.\n" +
		"The config file and the catalogue overlay are hot-reloaded.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	httpAddr := pick(serveHTTP, cfg.Listen.HTTP)
	grpcAddr := pick(serveGRPC, cfg.Listen.GRPC)
	if httpAddr == "" && grpcAddr == "" {
		return errors.New("both listeners are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := cmd.ErrOrStderr()
	p, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	grpcSrv := server.New(p, server.Config{Addr: grpcAddr, ConfigPath: configPath, Log: log})

	reloader, err := server.NewReloader(grpcSrv, []string{config.ResolvePath(configPath), cfg.Catalogue})
	if err != nil {
		fmt.Fprintf(log, "warning: hot-reload disabled: %v\n", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if reloader != nil {
		g.Go(func() error { return reloader.Run(gctx) })
	}

	if grpcAddr != "" {
		g.Go(grpcSrv.Serve)
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
		fmt.Fprintf(log, "consentwatch gRPC server listening on %s\n", grpcAddr)
	}

	if httpAddr != "" {
		httpSrv := &http.Server{
			Addr:              httpAddr,
			Handler:           httpapi.New(p.Engine, p.Session, log).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		fmt.Fprintf(log, "consentwatch HTTP API listening on %s\n", httpAddr)
	}

	if reloader != nil && len(reloader.Paths()) > 0 {
		fmt.Fprintf(log, "Watching %v (hot-reload enabled)\n", reloader.Paths())
	}
	fmt.Fprintln(log)

	err = g.Wait()
	fmt.Fprintln(log, "Shutting down...")
	return err
}

// pick returns flag when set, else def. "off" disables the listener.
func pick(flag, def string) string {
	v := def
	if flag != "" {
		v = flag
	}
	if v == "off" {
		return ""
	}
	return v
}
