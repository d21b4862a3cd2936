package telemetry

import (
	"testing"

	"github.com/vnmchuo/llm-relay/config"
)

func TestInitTracer_None(t *testing.T) {
	shutdown, err := InitTracer("relay-test", "test", config.TelemetryConfig{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	shutdown()
}

func TestInitTracer_Stdout(t *testing.T) {
	shutdown, err := InitTracer("relay-test", "test", config.TelemetryConfig{Exporter: "stdout"})
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	shutdown()
}

func TestInitTracer_UnknownExporter(t *testing.T) {
	if _, err := InitTracer("relay-test", "test", config.TelemetryConfig{Exporter: "jaeger"}); err == nil {
		t.Error("Expected an error for an unknown exporter")
	}
}
