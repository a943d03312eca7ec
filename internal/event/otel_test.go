package event

import (
	"context"
	"strconv"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	logglobal "go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"atomref/internal/ref"
)

type testOTelExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (exporter *testOTelExporter) Export(_ context.Context, records []sdklog.Record) error {
	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	for _, record := range records {
		exporter.records = append(exporter.records, record.Clone())
	}
	return nil
}

func (exporter *testOTelExporter) Shutdown(context.Context) error {
	return nil
}

func (exporter *testOTelExporter) ForceFlush(context.Context) error {
	return nil
}

func (exporter *testOTelExporter) snapshot() []sdklog.Record {
	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	records := make([]sdklog.Record, len(exporter.records))
	copy(records, exporter.records)
	return records
}

func installTestLoggerProvider(t *testing.T) *testOTelExporter {
	t.Helper()
	exporter := &testOTelExporter{}
	processor := sdklog.NewSimpleProcessor(exporter)
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	logglobal.SetLoggerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		logglobal.SetLoggerProvider(lognoop.NewLoggerProvider())
	})
	return exporter
}

func TestBusEmitsOTelLogRecordForTransition(t *testing.T) {
	exporter := installTestLoggerProvider(t)

	bus := NewBus[TransitionEvent](context.Background(), BusOptions{Name: "ref_events"})
	t.Cleanup(bus.Close)
	bus.Publish(NewTransitionEvent("counter", ref.Transition[int]{
		Key: "audit",
		Old: 0,
		New: 5,
		Op:  ref.OpReset,
	}))

	record := findRecordWithAttribute(exporter.snapshot(), "ref.name", "counter")
	if record == nil {
		t.Fatalf("expected log record with ref.name")
	}
	if record.EventName() != TypeRefReset {
		t.Fatalf("expected event name %s, got %q", TypeRefReset, record.EventName())
	}
	if record.Body().AsString() != "counter reset: 0 -> 5" {
		t.Fatalf("unexpected body %q", record.Body().AsString())
	}

	attrs := recordAttributes(record)
	expected := map[string]string{
		"event.bus":  "ref_events",
		"event.type": TypeRefReset,
		"ref.op":     "reset",
		"ref.old":    "0",
		"ref.new":    "5",
		"ref.watch":  "audit",
	}
	for key, value := range expected {
		if attrs[key] != value {
			t.Fatalf("expected %s=%q, got %q", key, value, attrs[key])
		}
	}
}

func TestBusEmitsWarningForRejectedConfig(t *testing.T) {
	exporter := installTestLoggerProvider(t)

	bus := NewBus[Event](context.Background(), BusOptions{Name: "config_events"})
	t.Cleanup(bus.Close)
	bus.Publish(NewConfigEvent(TypeConfigRejected, "/etc/atomref.toml", "workers must be positive"))

	record := findRecordWithAttribute(exporter.snapshot(), "config.path", "/etc/atomref.toml")
	if record == nil {
		t.Fatalf("expected log record with config.path")
	}
	if record.Severity() != otellog.SeverityWarn {
		t.Fatalf("expected warn severity, got %v", record.Severity())
	}
	if record.Body().AsString() != "workers must be positive" {
		t.Fatalf("unexpected body %q", record.Body().AsString())
	}
}

func TestBusSkipsOTelForUntypedEvents(t *testing.T) {
	exporter := installTestLoggerProvider(t)

	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)
	bus.Publish(7)

	if records := exporter.snapshot(); len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func findRecordWithAttribute(records []sdklog.Record, key, value string) *sdklog.Record {
	for idx := range records {
		record := &records[idx]
		attrs := recordAttributes(record)
		if attrs[key] == value {
			return record
		}
	}
	return nil
}

func recordAttributes(record *sdklog.Record) map[string]string {
	attrs := make(map[string]string)
	record.WalkAttributes(func(attr otellog.KeyValue) bool {
		switch attr.Value.Kind() {
		case otellog.KindString:
			attrs[attr.Key] = attr.Value.AsString()
		case otellog.KindInt64:
			attrs[attr.Key] = strconv.FormatInt(attr.Value.AsInt64(), 10)
		case otellog.KindFloat64:
			attrs[attr.Key] = strconv.FormatFloat(attr.Value.AsFloat64(), 'g', -1, 64)
		case otellog.KindBool:
			if attr.Value.AsBool() {
				attrs[attr.Key] = "true"
			} else {
				attrs[attr.Key] = "false"
			}
		default:
		}
		return true
	})
	return attrs
}
