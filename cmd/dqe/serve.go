package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SamuelRCrider/dqe-go/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validation engine over HTTP",
	Long: `Serve exposes record and batch validation as a JSON API together with
/health and Prometheus /metrics. Issues of every batch are written back the
same way as with "validate".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		deps := api.Deps{
			Engine:  rt.engine,
			Metrics: promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
			Logger:  slog.Default(),
		}
		if rt.store != nil {
			deps.Issues = rt.store
		}
		api.Version = version

		addr := viper.GetString("addr")
		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	addEngineFlags(serveCmd)
	serveCmd.PreRunE = func(cmd *cobra.Command, args []string) error { return bindEngineFlags(cmd) }

	rootCmd.AddCommand(serveCmd)
}
