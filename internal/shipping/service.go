package shipping

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/shipment-discounts/internal/common"
	"github.com/noah-isme/shipment-discounts/internal/discount"
	"github.com/noah-isme/shipment-discounts/internal/events"
	"github.com/noah-isme/shipment-discounts/internal/obs"
	"github.com/noah-isme/shipment-discounts/internal/pricing"
	"github.com/noah-isme/shipment-discounts/internal/shipment"
)

const tracerName = "github.com/noah-isme/shipment-discounts/internal/shipping"

// Service prices shipments in input order and keeps the run's shipment history.
// It is not safe for concurrent use: every evaluation must observe all earlier
// finalized shipments.
type Service struct {
	table   *pricing.Table
	parser  *shipment.Parser
	chain   discount.Handler
	logger  zerolog.Logger
	metrics *obs.ShipmentMetrics
	events  *events.Bus
	tracer  trace.Tracer
	history []shipment.Shipment
}

// ServiceConfig groups Service dependencies. Logger, Metrics, Events and Tracer are optional.
type ServiceConfig struct {
	Table   *pricing.Table
	Chain   discount.Handler
	Logger  *zerolog.Logger
	Metrics *obs.ShipmentMetrics
	Events  *events.Bus
	Tracer  trace.Tracer
}

// NewService validates the configuration and returns a Service with empty history.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Table == nil {
		return nil, errors.New("shipping: price table is required")
	}
	if cfg.Chain == nil {
		return nil, errors.New("shipping: discount chain is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Service{
		table:   cfg.Table,
		parser:  shipment.NewParser(cfg.Table),
		chain:   cfg.Chain,
		logger:  logger,
		metrics: cfg.Metrics,
		events:  cfg.Events,
		tracer:  tracer,
	}, nil
}

// ProcessLine prices a single record. Malformed records come back as an ignored
// Result with a nil error and do not enter the history. A non-nil error means an
// invariant was broken and the run should stop.
func (s *Service) ProcessLine(ctx context.Context, line string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.process_line")
	defer span.End()

	rec, err := s.parser.Parse(line)
	if err != nil {
		res := Result{Original: line, Ignored: true, Reason: err}
		span.SetAttributes(
			attribute.Bool("shipment.ignored", true),
			attribute.String("shipment.reason", common.Code(err)),
		)
		s.observe(ctx, res)
		return res, nil
	}

	base, err := s.table.Lookup(rec.Provider, rec.Size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price lookup")
		return Result{}, fmt.Errorf("shipping: price lookup for validated record: %w", err)
	}

	shp := shipment.New(rec.Date, rec.Size, rec.Provider, base)
	dctx := discount.NewContext(&shp, s.history, 0)
	s.chain.Process(dctx)
	shp.Finalize(base, dctx.CurrentDiscount)
	s.history = append(s.history, shp)

	span.SetAttributes(
		attribute.String("shipment.provider", string(shp.Provider)),
		attribute.String("shipment.size", string(shp.Size)),
		attribute.Int64("shipment.price_minor", int64(shp.Price)),
		attribute.Int64("shipment.discount_minor", int64(shp.Discount)),
	)
	res := Result{Original: line, Shipment: &shp}
	s.observe(ctx, res)
	return res, nil
}

// ProcessBatch prices lines in order, skipping blank lines. It stops at the first
// invariant violation and returns the results produced so far.
func (s *Service) ProcessBatch(ctx context.Context, lines []string) ([]Result, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.process_batch")
	defer span.End()

	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := s.ProcessLine(ctx, line)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "process batch")
			return results, err
		}
		results = append(results, res)
	}
	span.SetAttributes(attribute.Int("shipment.results", len(results)))
	return results, nil
}

// ProcessReader streams newline separated records from r.
func (s *Service) ProcessReader(ctx context.Context, r io.Reader) ([]Result, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.process_reader")
	defer span.End()

	var results []Result
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := s.ProcessLine(ctx, line)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "process reader")
			return results, err
		}
		results = append(results, res)
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read input")
		return results, fmt.Errorf("shipping: read input: %w", err)
	}
	return results, nil
}

// History returns a copy of the finalized shipments in processing order.
func (s *Service) History() []shipment.Shipment {
	return append([]shipment.Shipment(nil), s.history...)
}

func (s *Service) observe(ctx context.Context, res Result) {
	if res.Ignored {
		s.logger.Warn().
			Str("line", strings.TrimSpace(res.Original)).
			Str("reason", common.Code(res.Reason)).
			Err(res.Reason).
			Msg("shipment ignored")
		if s.metrics != nil {
			s.metrics.Processed.WithLabelValues(obs.ResultIgnored).Inc()
		}
		s.emit(ctx, events.TopicShipmentIgnored, map[string]any{
			"line":   strings.TrimSpace(res.Original),
			"reason": common.Code(res.Reason),
		})
		return
	}

	shp := res.Shipment
	s.logger.Debug().
		Str("date", shp.Date.Format(shipment.DateLayout)).
		Str("provider", string(shp.Provider)).
		Str("size", string(shp.Size)).
		Str("price", shp.Price.String()).
		Str("discount", shp.Discount.String()).
		Msg("shipment priced")
	if s.metrics != nil {
		s.metrics.Processed.WithLabelValues(obs.ResultPriced).Inc()
		if shp.Discount > 0 {
			s.metrics.DiscountMinor.WithLabelValues(string(shp.Provider), string(shp.Size)).Add(float64(shp.Discount))
			if shp.Price == 0 {
				s.metrics.Free.WithLabelValues(string(shp.Provider), string(shp.Size)).Inc()
			}
		}
	}
	s.emit(ctx, events.TopicShipmentPriced, map[string]any{
		"date":     shp.Date.Format(shipment.DateLayout),
		"provider": shp.Provider,
		"size":     shp.Size,
		"price":    int64(shp.Price),
		"discount": int64(shp.Discount),
	})
}

func (s *Service) emit(ctx context.Context, topic string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("emit event")
	}
}
