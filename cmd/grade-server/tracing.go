package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/curriculagg/curricula-grade/cmd/grade-server/config"
	"github.com/curriculagg/curricula-grade/cmd/grade/version"
)

const serviceName = "curricula-grade-server"

// initTracer installs the global tracer provider exporting to the configured
// OTLP endpoint
func initTracer(conf *config.Config) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		if conf.OTLPEndpoint == "" {
			return nil, nil
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(conf.OTLPEndpoint)}
		if conf.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		exp, err := otlptracegrpc.New(context.Background(), opts...)
		if err != nil {
			logger.Error("OTLP exporter init failed", zap.Error(err))
			return nil, nil
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version.Version),
			)),
		)
		otel.SetTracerProvider(tp)
		logger.Info("Exporting traces", zap.String("endpoint", conf.OTLPEndpoint))
		return nil, func(ctx context.Context) error {
			logger.Info("Tracer provider shutdown")
			return tp.Shutdown(ctx)
		}
	}
}
