package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	WebhookEvents.WithLabelValues("success").Inc()
	SuggestionsTotal.Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"webhook_events_total": false, "suggestions_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
		if mf.GetName() == "suggestions_total" {
			for _, m := range mf.GetMetric() {
				if len(m.GetLabel()) != 0 {
					t.Fatalf("suggestions_total should carry no labels, got %v", m.GetLabel())
				}
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}
