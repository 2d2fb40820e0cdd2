package model

import (
	"context"
	"testing"
)

func TestCallContext_roundTrip(t *testing.T) {
	cc := &CallContext{CorrelationID: "corr-1", Database: "shop"}
	ctx := WithCallContext(context.Background(), cc)

	got := CallContextFrom(ctx)
	if got == nil {
		t.Fatal("CallContextFrom() returned nil")
	}
	if got.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want %q", got.CorrelationID, "corr-1")
	}
	if got.Database != "shop" {
		t.Errorf("Database = %q, want %q", got.Database, "shop")
	}
}

func TestCallContextFrom_missing(t *testing.T) {
	if got := CallContextFrom(context.Background()); got != nil {
		t.Errorf("CallContextFrom() = %v, want nil", got)
	}
}
