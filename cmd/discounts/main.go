package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shipment-discounts/internal/config"
	"github.com/noah-isme/shipment-discounts/internal/discount"
	"github.com/noah-isme/shipment-discounts/internal/events"
	"github.com/noah-isme/shipment-discounts/internal/obs"
	"github.com/noah-isme/shipment-discounts/internal/pricing"
	"github.com/noah-isme/shipment-discounts/internal/shipping"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [input-file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if path := flag.Arg(0); path != "" {
		cfg.InputFile = path
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, os.Stderr).With().Str("env", cfg.AppEnv).Logger()

	ctx := context.Background()
	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "shipment-discounts",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Str("input", cfg.InputFile).Msg("process shipments")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := obs.NewShipmentMetrics(cfg.MetricsNamespace, reg)
	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger, Level: zerolog.DebugLevel},
	}}

	table := pricing.DefaultTable()
	svc, err := shipping.NewService(shipping.ServiceConfig{
		Table:   table,
		Chain:   discount.DefaultChain(table, cfg.MonthlyDiscountLimit),
		Logger:  &logger,
		Metrics: metrics,
		Events:  bus,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	results, err := svc.ProcessReader(ctx, f)
	if err != nil {
		return err
	}
	for _, row := range shipping.Rows(results) {
		if _, err := fmt.Fprintln(stdout, row); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	logger.Info().Int("rows", len(results)).Int("priced", len(svc.History())).Msg("shipments processed")

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
