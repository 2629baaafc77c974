package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if tel.Tracer == nil || tel.Meter == nil {
		t.Fatal("noop telemetry must still carry tracer and meter")
	}

	// Instruments work without a provider.
	tel.ChatRequests.Add(context.Background(), 1)
	tel.ToolCalls.Add(context.Background(), 1)
	tel.ChatDuration.Record(context.Background(), 0.5)

	_, span := tel.Tracer.Start(context.Background(), "test")
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown should not fail: %v", err)
	}
}

func TestInitEnabledCreatesExportFiles(t *testing.T) {
	dir := t.TempDir()
	tel, err := Init(context.Background(), Config{Enabled: true, Dir: dir, Version: "test"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, span := tel.Tracer.Start(context.Background(), "test-span")
	tel.ChatRequests.Add(ctx, 1)
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "phonewise_traces.log"))
	if err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("trace file is empty")
	}
}
