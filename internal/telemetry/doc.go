// Package telemetry exports claude-agent traces and metrics over OTLP.
//
// Every agent session becomes a span carrying its agent type, iteration,
// model and outcome; the status server records request metrics through
// the same meter provider. Export is off unless the project config turns
// it on:
//
//	telemetry:
//	  enabled: true
//	  endpoint: localhost:4317
//	  protocol: grpc        # or http/protobuf
//	  sampling_rate: 1.0
//	  export_interval: 15s
//
// Telemetry failures do not stop a run. If a provider cannot be created
// the instance degrades to the global no-op providers.
//
// Tests use TestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
