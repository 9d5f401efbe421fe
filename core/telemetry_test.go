package core

import "testing"

func TestNewOTelProvider_RejectsEmptyServiceName(t *testing.T) {
	if _, err := NewOTelProvider("", "localhost:4318"); err == nil {
		t.Fatalf("expected an error for an empty service name")
	}
}

func TestNoOpTelemetry_StartSpanReturnsNoOpSpan(t *testing.T) {
	tel := &NoOpTelemetry{}
	ctx, span := tel.StartSpan(nil, "op")
	if ctx != nil {
		t.Errorf("expected NoOpTelemetry to hand back the same nil context it received")
	}
	span.SetAttribute("k", "v")
	span.RecordError(nil)
	span.End() // must not panic
}
