package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/sincerity-pipeline/metrics"
	"github.com/maastricht-university/sincerity-pipeline/orchestrator"
	"github.com/maastricht-university/sincerity-pipeline/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return c
}

func runServe(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, log, err := setup()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = conf.Server.Addr
	}
	if conf.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p, err := orchestrator.NewPipeline(conf, log, m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(conf.Server.UploadDir, 0o755); err != nil {
		return err
	}
	sweeper, err := server.StartSweeper(conf.Server.UploadDir, conf.Server.SweepEvery, conf.Server.MaxAge, log)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	srv := server.New(p, server.Options{
		UploadDir:         conf.Server.UploadDir,
		MaxUploadMB:       conf.Server.MaxUploadMB,
		DefaultCredential: conf.Sincerity.APIKey,
	}, log, m, reg)

	hs := &http.Server{Addr: addr, Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
