package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected disabled provider")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled provider error = %v", err)
	}
	if provider.Tracer("mapnest") == nil {
		t.Error("disabled provider must still hand out a tracer")
	}
}

func TestNewProvider_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing service name", Config{Enabled: true}},
		{"negative sampling rate", Config{Enabled: true, ServiceName: "mapnest-api", SamplingRate: -0.1}},
		{"sampling rate above one", Config{Enabled: true, ServiceName: "mapnest-api", SamplingRate: 1.5}},
		{"unknown exporter", Config{Enabled: true, ServiceName: "mapnest-api", ExporterType: "jaeger"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected a config error")
			}
		})
	}
}

func TestNewProvider_BuildsPipeline(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "otlp-http with head sampling",
			cfg: Config{
				ServiceName:  "mapnest-api",
				Enabled:      true,
				Environment:  "development",
				ExporterType: "otlp-http",
				OTLPEndpoint: "localhost:4318",
				SamplingRate: 0.1,
				InsecureMode: true,
			},
		},
		{
			name: "otlp-grpc sampling everything",
			cfg: Config{
				ServiceName:  "mapnest-api",
				Enabled:      true,
				Environment:  "development",
				ExporterType: "otlp-grpc",
				OTLPEndpoint: "localhost:4317",
				SamplingRate: 1.0,
				InsecureMode: true,
			},
		},
		{
			name: "defaults for exporter and sampling",
			cfg: Config{
				ServiceName: "mapnest-api",
				Enabled:     true,
				Environment: "development",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected enabled provider")
			}
			if provider.Tracer("mapnest") == nil {
				t.Error("expected a tracer")
			}

			// No collector is listening, so only bound the flush; its error
			// is irrelevant here.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
	}
}
