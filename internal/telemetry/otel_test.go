package telemetry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestOptionsRatio(t *testing.T) {
	t.Parallel()

	tests := map[float64]float64{0: 1, -0.5: 1, 0.25: 0.25, 1: 1, 7: 1}
	for in, want := range tests {
		if got := (Options{SampleRatio: in}).ratio(); got != want {
			t.Errorf("ratio(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestNewTracerProvider(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "insecure", opts: Options{Service: ServerServiceName, Endpoint: "localhost:4318", Insecure: true, SampleRatio: 1}},
		{name: "tls", opts: Options{Service: WorkerServiceName, Endpoint: "localhost:4318", SampleRatio: 0.5}},
		{name: "empty service name", opts: Options{Endpoint: "localhost:4318", Insecure: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := NewTracerProvider(ctx, tt.opts)
			if err != nil {
				t.Fatalf("NewTracerProvider() error = %v", err)
			}
			if err := tp.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantActive bool
	}{
		{name: "disabled", opts: Options{Endpoint: "localhost:4318"}},
		{name: "enabled without endpoint", opts: Options{Enabled: true}},
		{name: "enabled", opts: Options{Enabled: true, Endpoint: "localhost:4318", Insecure: true}, wantActive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			opts := tt.opts
			opts.Service = ServerServiceName
			shutdown, active := Setup(ctx, opts, zap.NewNop())
			if active != tt.wantActive {
				t.Errorf("active = %v, want %v", active, tt.wantActive)
			}
			if shutdown == nil {
				t.Fatal("shutdown must never be nil")
			}
			if err := shutdown(ctx); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}
