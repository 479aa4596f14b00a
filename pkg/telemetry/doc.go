// Package telemetry provides observability instrumentation for leadflow.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) behind a single Telemetry value
// that the CLI creates once per invocation.
//
// # Architecture
//
// leadflow runs as a short-lived batch job, so the pillars are arranged
// around one invocation:
//
//  1. Structured Logging - zerolog, written to stderr or a file
//  2. Distributed Tracing - OpenTelemetry spans for the run, each lead, and each port call
//  3. Metrics Collection - Prometheus collectors flushed to a textfile or a Pushgateway on exit
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Metrics
//
// Metrics implements engine.Recorder, so the orchestrator reports committed
// transitions, port calls, and classified errors directly:
//
//	orch := engine.NewOrchestrator(store, source, crafter, deliverer, replies, opts,
//	    engine.WithRecorder(tel.Metrics),
//	    engine.WithTracer(tel.Tracer.Tracer()),
//	)
//
// Because nothing scrapes a batch job, Flush writes the registry to
// MetricsConfig.Textfile for the node-exporter textfile collector and pushes
// it to MetricsConfig.PushgatewayURL when either is set.
package telemetry
