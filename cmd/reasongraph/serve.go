package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/reasongraph/internal/observability"
	"github.com/aixgo-dev/reasongraph/internal/server"
	metrics "github.com/aixgo-dev/reasongraph/pkg/observability"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /query event stream over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	obs := a.cfg.Observability
	if obs.MetricsEnabled {
		metrics.InitMetrics()
	}

	shutdownTracing, err := observability.Init(observability.Config{
		ServiceName:  obs.ServiceName,
		Exporter:     obs.TraceExporter,
		OTLPEndpoint: obs.OTLPEndpoint,
		OTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		Insecure:     os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		SampleRate:   obs.SampleRate,
	}, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	srv := server.New(server.Config{
		Addr:                 a.cfg.Server.Addr,
		CORSOrigins:          a.cfg.Server.CORSOrigins,
		RateLimitRPS:         a.cfg.Server.RateLimitRPS,
		RateLimitBurst:       a.cfg.Server.RateLimitBurst,
		GlobalRateLimitRPS:   a.cfg.Server.GlobalRateLimitRPS,
		GlobalRateLimitBurst: a.cfg.Server.GlobalRateLimitBurst,
		StreamTimeout:        a.cfg.Server.StreamTimeout,
	}, a.query, a.health, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if a.cfg.Server.AdminAddr != "" {
		admin := metrics.NewServer(a.cfg.Server.AdminAddr, a.health)
		g.Go(func() error {
			a.logger.Info("admin server listening", zap.String("addr", a.cfg.Server.AdminAddr))
			return admin.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	a.logger.Info("reasongraph stopped")
	return err
}
