package alarms

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/metrics"
	"github.com/miradorstack/mirador-bsm/internal/models"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

var tracer = otel.Tracer("mirador-bsm/alarms")

// latencyReportEvery is the number of applied alarms between p95 latency log lines.
const latencyReportEvery = 100

// Popper yields raw alarm payloads. A nil payload with a nil error means nothing arrived in time.
type Popper interface {
	Pop(ctx context.Context) ([]byte, error)
}

// Applier is the state machine surface the pipeline drives.
type Applier interface {
	HandleNewOrUpdatedAlarm(alarm models.AlarmEvent) []engine.StateChange
	ReductionKeyStatus(key string) (models.Status, bool)
}

// Pipeline moves alarms from the stream into the state machine. Payloads are read
// concurrently with processing but applied by a single goroutine, one at a time, in arrival order.
type Pipeline struct {
	popper     Popper
	applier    Applier
	logger     *slog.Logger
	retryDelay time.Duration
	buffer     int
	latencies  *utils.LatencyTracker
}

// NewPipeline constructs a pipeline. retryDelay is the pause after a failed pop.
func NewPipeline(popper Popper, applier Applier, logger *slog.Logger, retryDelay time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &Pipeline{
		popper:     popper,
		applier:    applier,
		logger:     logger,
		retryDelay: retryDelay,
		buffer:     256,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// Run consumes alarms until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("alarm pipeline started")
	payloads := make(chan []byte, p.buffer)

	go func() {
		defer close(payloads)
		p.readLoop(ctx, payloads)
	}()

	for payload := range payloads {
		p.Apply(ctx, payload)
	}
	p.logger.Info("alarm pipeline stopped")
	return ctx.Err()
}

func (p *Pipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.popper.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("pop alarm failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// Apply parses and applies a single payload. Malformed payloads are logged and dropped.
func (p *Pipeline) Apply(ctx context.Context, payload []byte) []engine.StateChange {
	_, span := tracer.Start(ctx, "alarms.Apply")
	defer span.End()

	alarm, err := Parse(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveAlarm(0, metrics.OutcomeMalformed)
		p.logger.Warn("dropping malformed alarm", slog.Any("error", err))
		return nil
	}
	span.SetAttributes(
		attribute.String("alarm.id", alarm.ID),
		attribute.String("alarm.reduction_key", alarm.ReductionKey),
		attribute.String("alarm.severity", alarm.Severity.String()),
	)

	start := time.Now()
	changes := p.applier.HandleNewOrUpdatedAlarm(alarm)
	duration := time.Since(start)

	outcome := metrics.OutcomeIgnored
	if _, tracked := p.applier.ReductionKeyStatus(alarm.ReductionKey); tracked {
		outcome = metrics.OutcomeMatched
	}
	metrics.ObserveAlarm(duration, outcome)
	span.AddEvent("applied", trace.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("state_changes", len(changes)),
	))
	span.SetStatus(codes.Ok, "")

	if total := p.latencies.Observe(duration); total%latencyReportEvery == 0 {
		p.logger.Info("alarm latency",
			slog.Duration("p95", p.latencies.Percentile(95)),
			slog.Int("window", p.latencies.Count()),
			slog.Uint64("alarms", total),
		)
	}
	return changes
}
