package middleware

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_RegisterAndObserve(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.IncRateLimitRequests("global")
	m.IncRateLimitRequests("export")
	m.IncRateLimitBlocked("export")
	m.IncRateLimitRedisErrors()
	m.ObserveHTTPRequest("POST", "/map-areas/{id}/export", "201", 3.2, 128, 96)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true

		switch mf.GetName() {
		case MetricRateLimitRequests:
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected global and export series, got %d", len(mf.GetMetric()))
			}
		case MetricHTTPRequestsTotal:
			metric := mf.GetMetric()[0]
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] != "/map-areas/{id}/export" {
				t.Errorf("path label = %q, want route pattern", labels["path"])
			}
			if labels["status"] != "201" {
				t.Errorf("status label = %q, want 201", labels["status"])
			}
		}
	}

	for _, name := range []string{
		MetricRateLimitRequests,
		MetricRateLimitBlocked,
		MetricRateLimitRedisErrors,
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestMetrics_NamesCarryServicePrefix(t *testing.T) {
	for _, name := range []string{
		MetricRateLimitRequests,
		MetricRateLimitBlocked,
		MetricRateLimitRedisErrors,
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if !strings.HasPrefix(name, "mapnest_") {
			t.Errorf("metric %s missing mapnest_ prefix", name)
		}
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected error registering the same collectors twice")
	}
}

func TestMetrics_CollectorsComplete(t *testing.T) {
	if got := len(NewMetrics().Collectors()); got != 7 {
		t.Errorf("Collectors() returned %d, want 7", got)
	}
}
