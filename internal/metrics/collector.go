package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	commitsDesc = prometheus.NewDesc(
		"atomref_commits_total",
		"Committed reference transitions.",
		[]string{"ref", "op"}, nil,
	)
	retriesDesc = prometheus.NewDesc(
		"atomref_cas_retries_total",
		"Swap attempts that lost a compare-and-swap race.",
		[]string{"ref"}, nil,
	)
	rejectionsDesc = prometheus.NewDesc(
		"atomref_validation_rejections_total",
		"Candidates rejected by a validator.",
		[]string{"ref"}, nil,
	)
	watchFailuresDesc = prometheus.NewDesc(
		"atomref_watch_failures_total",
		"Notifications aborted by a failing watch.",
		[]string{"ref"}, nil,
	)
	eventsPublishedDesc = prometheus.NewDesc(
		"atomref_events_published_total",
		"Events published on a bus.",
		[]string{"bus", "type"}, nil,
	)
	eventsDroppedDesc = prometheus.NewDesc(
		"atomref_events_dropped_total",
		"Events dropped by a bus.",
		[]string{"bus", "type"}, nil,
	)
	subscribersDesc = prometheus.NewDesc(
		"atomref_event_subscribers",
		"Active bus subscribers.",
		[]string{"bus", "filtered"}, nil,
	)
)

// Collector exposes a Registry to a prometheus.Registerer.
type Collector struct {
	registry *Registry
}

func NewCollector(registry *Registry) *Collector {
	if registry == nil {
		registry = Default
	}
	return &Collector{registry: registry}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- commitsDesc
	ch <- retriesDesc
	ch <- rejectionsDesc
	ch <- watchFailuresDesc
	ch <- eventsPublishedDesc
	ch <- eventsDroppedDesc
	ch <- subscribersDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.registry.RefNames() {
		snapshot := c.registry.Snapshot(name)
		ch <- prometheus.MustNewConstMetric(commitsDesc, prometheus.CounterValue, float64(snapshot.Swaps), name, "swap")
		ch <- prometheus.MustNewConstMetric(commitsDesc, prometheus.CounterValue, float64(snapshot.Sets), name, "set")
		ch <- prometheus.MustNewConstMetric(commitsDesc, prometheus.CounterValue, float64(snapshot.Resets), name, "reset")
		ch <- prometheus.MustNewConstMetric(retriesDesc, prometheus.CounterValue, float64(snapshot.Retries), name)
		ch <- prometheus.MustNewConstMetric(rejectionsDesc, prometheus.CounterValue, float64(snapshot.Rejections), name)
		ch <- prometheus.MustNewConstMetric(watchFailuresDesc, prometheus.CounterValue, float64(snapshot.WatchFailures), name)
	}

	for _, key := range c.registry.eventKeys() {
		value, _ := c.registry.events.Load(key)
		stats := value.(*eventStats)
		ch <- prometheus.MustNewConstMetric(eventsPublishedDesc, prometheus.CounterValue, float64(stats.published.Load()), key.bus, key.eventType)
		ch <- prometheus.MustNewConstMetric(eventsDroppedDesc, prometheus.CounterValue, float64(stats.dropped.Load()), key.bus, key.eventType)
	}
	for _, bus := range c.registry.subscriberBuses() {
		value, _ := c.registry.subscribers.Load(bus)
		stats := value.(*subscriberStats)
		ch <- prometheus.MustNewConstMetric(subscribersDesc, prometheus.GaugeValue, float64(stats.filtered.Load()), bus, "true")
		ch <- prometheus.MustNewConstMetric(subscribersDesc, prometheus.GaugeValue, float64(stats.unfiltered.Load()), bus, "false")
	}
}

// WritePrometheus gathers the registry through a Collector on a private
// prometheus.Registry and writes the text exposition format.
func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}
	gatherer := prometheus.NewRegistry()
	if err := gatherer.Register(NewCollector(r)); err != nil {
		return err
	}
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(writer, family); err != nil {
			return err
		}
	}
	return nil
}
