package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistrySnapshotCountsByOp(t *testing.T) {
	registry := &Registry{}
	registry.RecordCommit("counter", "swap")
	registry.RecordCommit("counter", "swap")
	registry.RecordCommit("counter", "set")
	registry.RecordCommit("counter", "reset")
	registry.RecordRetry("counter")
	registry.RecordRejection("counter")
	registry.RecordWatchFailure("counter")

	snapshot := registry.Snapshot("counter")
	if snapshot.Swaps != 2 || snapshot.Sets != 1 || snapshot.Resets != 1 {
		t.Fatalf("unexpected commit counts: %+v", snapshot)
	}
	if snapshot.Commits() != 4 {
		t.Fatalf("expected 4 commits, got %d", snapshot.Commits())
	}
	if snapshot.Retries != 1 || snapshot.Rejections != 1 || snapshot.WatchFailures != 1 {
		t.Fatalf("unexpected failure counts: %+v", snapshot)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry
	registry.RecordCommit("x", "swap")
	registry.RecordRetry("x")
	registry.IncEventPublished("bus", "type")
	if got := registry.Snapshot("x"); got != (RefSnapshot{}) {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
	if err := registry.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
}

func TestWritePrometheus(t *testing.T) {
	registry := &Registry{}
	registry.RecordCommit("a\"b", "swap")
	registry.RecordRetry("a\"b")
	registry.IncEventPublished("transitions", "ref.swap")
	registry.IncEventDropped("transitions", "ref.swap")

	var output bytes.Buffer
	if err := registry.WritePrometheus(&output); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	body := output.String()
	for _, want := range []string{
		`# TYPE atomref_commits_total counter`,
		`atomref_commits_total{op="swap",ref="a\"b"} 1`,
		`atomref_cas_retries_total{ref="a\"b"} 1`,
		`atomref_events_published_total{bus="transitions",type="ref.swap"} 1`,
		`atomref_events_dropped_total{bus="transitions",type="ref.swap"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output, got %q", want, body)
		}
	}
}

func TestCollectorExportsCounters(t *testing.T) {
	registry := &Registry{}
	registry.RecordCommit("counter", "swap")
	registry.RecordCommit("counter", "swap")
	registry.RecordRejection("counter")

	collector := NewCollector(registry)
	promRegistry := prometheus.NewRegistry()
	if err := promRegistry.Register(collector); err != nil {
		t.Fatalf("register collector: %v", err)
	}
	if count := testutil.CollectAndCount(collector); count != 6 {
		t.Fatalf("expected 6 series, got %d", count)
	}

	expected := `
# HELP atomref_validation_rejections_total Candidates rejected by a validator.
# TYPE atomref_validation_rejections_total counter
atomref_validation_rejections_total{ref="counter"} 1
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "atomref_validation_rejections_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorExportsBusSeries(t *testing.T) {
	registry := &Registry{}
	registry.IncEventPublished("transitions", "ref_swap")
	registry.IncEventPublished("transitions", "ref_swap")
	registry.IncEventDropped("transitions", "ref_swap")
	registry.SetEventSubscriberCounts("transitions", 1, 2)

	expected := `
# HELP atomref_event_subscribers Active bus subscribers.
# TYPE atomref_event_subscribers gauge
atomref_event_subscribers{bus="transitions",filtered="false"} 2
atomref_event_subscribers{bus="transitions",filtered="true"} 1
# HELP atomref_events_dropped_total Events dropped by a bus.
# TYPE atomref_events_dropped_total counter
atomref_events_dropped_total{bus="transitions",type="ref_swap"} 1
# HELP atomref_events_published_total Events published on a bus.
# TYPE atomref_events_published_total counter
atomref_events_published_total{bus="transitions",type="ref_swap"} 2
`
	if err := testutil.CollectAndCompare(NewCollector(registry), strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
