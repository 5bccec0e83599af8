// Package telemetry wires OpenTelemetry trace and metric export over
// OTLP gRPC. Init installs global providers so library code can create
// spans through the otel API without holding a reference to the SDK.
package telemetry
