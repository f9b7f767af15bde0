package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flowrun-ai/codeexec/engine/packager"
)

type executionOutcome string

const (
	outcomeSuccess executionOutcome = "success"
	outcomeFailure executionOutcome = "failure"
	outcomeTimeout executionOutcome = "timeout"
	outcomeError   executionOutcome = "error"
)

type runtimeMetrics struct {
	initOnce sync.Once

	executionLatency metric.Float64Histogram
	executionCounter metric.Int64Counter
	timeoutCounter   metric.Int64Counter
}

var metricsContainer runtimeMetrics

func metricsRecorder() *runtimeMetrics {
	metricsContainer.initOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("codeexec.runtime")
		metricsContainer.executionLatency = createHistogram(
			meter,
			"codeexec_runtime_execute_seconds",
			"Latency of user code executions from dispatch to completion",
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		)
		metricsContainer.executionCounter = createCounter(
			meter,
			"codeexec_runtime_executions_total",
			"Total user code executions by backend, language and outcome",
		)
		metricsContainer.timeoutCounter = createCounter(
			meter,
			"codeexec_runtime_timeouts_total",
			"Total executions that exceeded their wall-clock budget",
		)
	})
	return &metricsContainer
}

func createHistogram(meter metric.Meter, name, description string, boundaries []float64) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(boundaries...),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create runtime histogram %s: %w", name, err))
	}
	return histogram
}

func createCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create runtime counter %s: %w", name, err))
	}
	return counter
}

func recordExecution(ctx context.Context, pkg *packager.Packaged, outcome executionOutcome, duration time.Duration) {
	recorder := metricsRecorder()
	attrs := metric.WithAttributes(
		attribute.String("backend", string(pkg.Target)),
		attribute.String("language", pkg.Language.String()),
		attribute.String("outcome", string(outcome)),
	)
	if recorder.executionCounter != nil {
		recorder.executionCounter.Add(ctx, 1, attrs)
	}
	if recorder.executionLatency != nil && duration > 0 {
		recorder.executionLatency.Record(ctx, duration.Seconds(), attrs)
	}
	if outcome == outcomeTimeout && recorder.timeoutCounter != nil {
		recorder.timeoutCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("backend", string(pkg.Target)),
				attribute.String("language", pkg.Language.String()),
			),
		)
	}
}
