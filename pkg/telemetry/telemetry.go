package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/d60-Lab/content-factory/config"
)

// Init 初始化 Sentry 与 OTLP tracing；未配置的组件保持关闭。
// 返回关闭函数。
func Init(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Telemetry.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Telemetry.SentryDSN,
			TracesSampleRate: 0.1,
		}); err != nil {
			return nil, err
		}
	}

	shutdown := func(ctx context.Context) error {
		sentry.Flush(2 * time.Second)
		return nil
	}

	if cfg.Telemetry.OTLPEndpoint == "" {
		return shutdown, nil
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Telemetry.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.Telemetry.ServiceName),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		sentry.Flush(2 * time.Second)
		return tp.Shutdown(ctx)
	}, nil
}

// CaptureError 上报错误到 Sentry（未启用时为空操作）
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}
