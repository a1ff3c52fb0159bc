package otel

import (
	"context"
	"testing"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{
		Enabled:  true,
		Exporter: "none",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.MessageAppends == nil {
		t.Error("MessageAppends is nil")
	}
	if m.FactObservations == nil {
		t.Error("FactObservations is nil")
	}
	if m.FactReplacements == nil {
		t.Error("FactReplacements is nil")
	}
	if m.ToolCallDuration == nil {
		t.Error("ToolCallDuration is nil")
	}
	if m.ToolCallErrors == nil {
		t.Error("ToolCallErrors is nil")
	}
	if m.TaskClaims == nil {
		t.Error("TaskClaims is nil")
	}
	if m.ClaimConflicts == nil {
		t.Error("ClaimConflicts is nil")
	}
	if m.TaskRunDuration == nil {
		t.Error("TaskRunDuration is nil")
	}
	if m.TaskRunErrors == nil {
		t.Error("TaskRunErrors is nil")
	}
	if m.TickDuration == nil {
		t.Error("TickDuration is nil")
	}
	if m.StoreRetries == nil {
		t.Error("StoreRetries is nil")
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	// Disabled OTel returns a noop meter; instruments must still create.
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
}
