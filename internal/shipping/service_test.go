package shipping_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/shipment-discounts/internal/common"
	"github.com/noah-isme/shipment-discounts/internal/discount"
	"github.com/noah-isme/shipment-discounts/internal/events"
	"github.com/noah-isme/shipment-discounts/internal/obs"
	"github.com/noah-isme/shipment-discounts/internal/pricing"
	"github.com/noah-isme/shipment-discounts/internal/shipment"
	"github.com/noah-isme/shipment-discounts/internal/shipping"
)

const sampleInput = `2015-02-01 S MR
2015-02-02 S MR
2015-02-03 L LP
2015-02-05 S LP
2015-02-06 S MR
2015-02-06 L LP
2015-02-07 L MR
2015-02-08 M MR
2015-02-09 L LP
2015-02-10 L LP
2015-02-10 S MR
2015-02-10 S MR
2015-02-11 L LP
2015-02-12 M MR
2015-02-13 M LP
2015-02-15 S MR
2015-02-17 L LP
2015-02-17 S MR
2015-02-24 L LP
2015-02-29 CUSPS
2015-03-01 S MR
`

var sampleOutput = []string{
	"2015-02-01 S MR 1.50 0.50",
	"2015-02-02 S MR 1.50 0.50",
	"2015-02-03 L LP 6.90 -",
	"2015-02-05 S LP 1.50 -",
	"2015-02-06 S MR 1.50 0.50",
	"2015-02-06 L LP 6.90 -",
	"2015-02-07 L MR 4.00 -",
	"2015-02-08 M MR 3.00 -",
	"2015-02-09 L LP 0.00 6.90",
	"2015-02-10 L LP 6.90 -",
	"2015-02-10 S MR 1.50 0.50",
	"2015-02-10 S MR 1.50 0.50",
	"2015-02-11 L LP 6.90 -",
	"2015-02-12 M MR 3.00 -",
	"2015-02-13 M LP 4.90 -",
	"2015-02-15 S MR 1.50 0.50",
	"2015-02-17 L LP 6.90 -",
	"2015-02-17 S MR 1.90 0.10",
	"2015-02-24 L LP 6.90 -",
	"2015-02-29 CUSPS Ignored",
	"2015-03-01 S MR 1.50 0.50",
}

func newService(t *testing.T, cfg shipping.ServiceConfig) *shipping.Service {
	t.Helper()
	if cfg.Table == nil {
		cfg.Table = pricing.DefaultTable()
	}
	if cfg.Chain == nil {
		cfg.Chain = discount.DefaultChain(cfg.Table, discount.DefaultMonthlyLimit)
	}
	svc, err := shipping.NewService(cfg)
	require.NoError(t, err)
	return svc
}

func TestProcessReaderSample(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})

	results, err := svc.ProcessReader(context.Background(), strings.NewReader(sampleInput))
	require.NoError(t, err)
	require.Equal(t, sampleOutput, shipping.Rows(results))
	require.Len(t, svc.History(), len(sampleOutput)-1)
}

func TestProcessBatchMatchesReader(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})

	lines := strings.Split(sampleInput, "\n")
	results, err := svc.ProcessBatch(context.Background(), lines)
	require.NoError(t, err)
	require.Equal(t, sampleOutput, shipping.Rows(results))
}

func TestFinalizedShipmentInvariants(t *testing.T) {
	table := pricing.DefaultTable()
	svc := newService(t, shipping.ServiceConfig{Table: table})

	_, err := svc.ProcessReader(context.Background(), strings.NewReader(sampleInput))
	require.NoError(t, err)

	monthly := map[time.Month]pricing.Money{}
	for _, s := range svc.History() {
		base, err := table.Lookup(s.Provider, s.Size)
		require.NoError(t, err)
		require.Equal(t, base, s.Price+s.Discount)
		require.GreaterOrEqual(t, s.Discount, pricing.Money(0))
		require.GreaterOrEqual(t, s.Price, pricing.Money(0))
		monthly[s.Date.Month()] += s.Discount
	}
	for month, total := range monthly {
		require.LessOrEqual(t, total, discount.DefaultMonthlyLimit, month.String())
	}
	require.Equal(t, pricing.Money(1000), monthly[time.February])
}

func TestMonthlyCapHoldsForManySmallShipments(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})

	var lines []string
	for day := 1; day <= 28; day++ {
		lines = append(lines, time.Date(2016, time.April, day, 0, 0, 0, 0, time.UTC).Format(shipment.DateLayout)+" S MR")
		lines = append(lines, time.Date(2016, time.April, day, 0, 0, 0, 0, time.UTC).Format(shipment.DateLayout)+" L LP")
	}
	_, err := svc.ProcessBatch(context.Background(), lines)
	require.NoError(t, err)

	var total pricing.Money
	free := 0
	for _, s := range svc.History() {
		total += s.Discount
		if s.Size == pricing.Large && s.Price == 0 {
			free++
		}
	}
	require.Equal(t, discount.DefaultMonthlyLimit, total)
	require.Equal(t, 1, free)
}

func TestIgnoredRecordsDoNotConsumeHistory(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})
	ctx := context.Background()

	for _, line := range []string{"2015-02-01 L LP", "2015-02-02 L XX", "2015-02-02 L LP", "garbage"} {
		_, err := svc.ProcessLine(ctx, line)
		require.NoError(t, err)
	}
	res, err := svc.ProcessLine(ctx, "2015-02-03 L LP")
	require.NoError(t, err)
	require.Equal(t, "2015-02-03 L LP 0.00 6.90", res.String())
	require.Len(t, svc.History(), 3)
}

func TestProcessLineIgnoredResult(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})

	res, err := svc.ProcessLine(context.Background(), "  2015-02-01 XL MR  ")
	require.NoError(t, err)
	require.True(t, res.Ignored)
	require.Nil(t, res.Shipment)
	require.ErrorIs(t, res.Reason, shipment.ErrMalformedRecord)
	require.Equal(t, shipment.CodeInvalidSize, common.Code(res.Reason))
	require.Equal(t, "2015-02-01 XL MR Ignored", res.String())
}

func TestProcessLineMissingRateIsFatal(t *testing.T) {
	table := pricing.NewTable(map[pricing.Provider]map[pricing.PackageSize]pricing.Money{
		"XS": {pricing.Small: 100},
	})
	svc := newService(t, shipping.ServiceConfig{Table: table})

	_, err := svc.ProcessBatch(context.Background(), []string{"2015-02-01 S XS", "2015-02-01 M XS", "2015-02-02 S XS"})
	require.ErrorIs(t, err, pricing.ErrUnknownRate)
	require.Len(t, svc.History(), 1)
}

func TestProcessReaderReadFailure(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})

	_, err := svc.ProcessReader(context.Background(), iotest.ErrReader(errors.New("disk gone")))
	require.ErrorContains(t, err, "disk gone")
}

func TestHistoryIsACopy(t *testing.T) {
	svc := newService(t, shipping.ServiceConfig{})
	_, err := svc.ProcessLine(context.Background(), "2015-02-01 S MR")
	require.NoError(t, err)

	h := svc.History()
	h[0].Discount = 0
	require.Equal(t, pricing.Money(50), svc.History()[0].Discount)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := shipping.NewService(shipping.ServiceConfig{Chain: discount.Chain(discount.MonthlyLimit{})})
	require.Error(t, err)

	_, err = shipping.NewService(shipping.ServiceConfig{Table: pricing.DefaultTable()})
	require.Error(t, err)
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestServiceRecordsMetricsAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obs.NewShipmentMetrics("test", reg)
	notifier := &captureNotifier{}
	svc := newService(t, shipping.ServiceConfig{
		Metrics: metrics,
		Events:  &events.Bus{Notifiers: []events.Notifier{notifier}},
	})

	_, err := svc.ProcessReader(context.Background(), strings.NewReader(sampleInput))
	require.NoError(t, err)

	require.Equal(t, 20.0, testutil.ToFloat64(metrics.Processed.WithLabelValues(obs.ResultPriced)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Processed.WithLabelValues(obs.ResultIgnored)))
	require.Equal(t, 690.0, testutil.ToFloat64(metrics.DiscountMinor.WithLabelValues("LP", "L")))
	require.Equal(t, 360.0, testutil.ToFloat64(metrics.DiscountMinor.WithLabelValues("MR", "S")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Free.WithLabelValues("LP", "L")))

	require.Len(t, notifier.events, len(sampleOutput))
	ignored := notifier.events[19]
	require.Equal(t, events.TopicShipmentIgnored, ignored.Topic)
	require.JSONEq(t, `{"line":"2015-02-29 CUSPS","reason":"invalid_field_count"}`, string(ignored.Payload))
	free := notifier.events[8]
	require.Equal(t, events.TopicShipmentPriced, free.Topic)
	require.JSONEq(t, `{"date":"2015-02-09","provider":"LP","size":"L","price":0,"discount":690}`, string(free.Payload))
}

func TestServiceTracesLines(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	svc := newService(t, shipping.ServiceConfig{Tracer: provider.Tracer("test")})

	_, err := svc.ProcessBatch(context.Background(), []string{"2015-02-01 S MR", "bad line"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, "shipping.process_line", spans[0].Name())
	require.Equal(t, "shipping.process_line", spans[1].Name())
	require.Equal(t, "shipping.process_batch", spans[2].Name())
	require.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "MR", attrs["shipment.provider"])
	require.Equal(t, int64(50), attrs["shipment.discount_minor"])
}
