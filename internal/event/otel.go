package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

func (b *Bus[T]) emitOTelEvent(event T, fallbackType string) {
	if b == nil || b.otelLogger == nil {
		return
	}

	eventName, eventTime, body, attrs, ok := eventLogData(event, fallbackType, b.busName())
	if !ok {
		return
	}

	severity, severityText := severityForEvent(eventName)
	ctx := context.Background()
	if !b.otelLogger.Enabled(ctx, otellog.EnabledParameters{Severity: severity, EventName: eventName}) {
		return
	}

	var record otellog.Record
	record.SetEventName(eventName)
	record.SetTimestamp(eventTime)
	record.SetObservedTimestamp(time.Now().UTC())
	record.SetSeverity(severity)
	record.SetSeverityText(severityText)
	record.SetBody(otellog.StringValue(body))
	if len(attrs) > 0 {
		record.AddAttributes(attrs...)
	}
	b.otelLogger.Emit(ctx, record)
}

func severityForEvent(eventName string) (otellog.Severity, string) {
	switch eventName {
	case TypeConfigRejected:
		return otellog.SeverityWarn, "warning"
	case TypeRefSwap:
		return otellog.SeverityDebug, "debug"
	default:
		return otellog.SeverityInfo, "info"
	}
}

func eventLogData[T any](event T, fallbackType, busName string) (string, time.Time, string, []otellog.KeyValue, bool) {
	attrs := make([]otellog.KeyValue, 0, 8)
	if busName != "" {
		attrs = append(attrs, otellog.String("event.bus", busName))
	}

	var (
		eventName string
		eventTime time.Time
		body      string
	)
	if typed, ok := any(event).(Event); ok {
		eventName = strings.TrimSpace(typed.Type())
		eventTime = typed.Timestamp()
		attrs = append(attrs, eventAttributes(typed)...)
		body = eventBody(typed)
	}
	if eventName == "" && fallbackType != "unknown" {
		eventName = fallbackType
	}
	if eventName == "" || eventName == "unknown" {
		return "", time.Time{}, "", nil, false
	}
	if eventTime.IsZero() {
		eventTime = time.Now().UTC()
	}
	if body == "" {
		body = eventName
	}

	attrs = append(attrs, otellog.String("event.type", eventName))
	return eventName, eventTime, body, attrs, true
}

func eventBody(event Event) string {
	switch typed := event.(type) {
	case TransitionEvent:
		return fmt.Sprintf("%s %s: %v -> %v", typed.RefName, typed.Op, typed.Old, typed.New)
	case ConfigEvent:
		return strings.TrimSpace(typed.Message)
	default:
		return ""
	}
}

func eventAttributes(event Event) []otellog.KeyValue {
	switch typed := event.(type) {
	case TransitionEvent:
		return transitionAttributes(typed)
	case *TransitionEvent:
		if typed == nil {
			return nil
		}
		return transitionAttributes(*typed)
	case ConfigEvent:
		return configAttributes(typed)
	case *ConfigEvent:
		if typed == nil {
			return nil
		}
		return configAttributes(*typed)
	default:
		return nil
	}
}

func transitionAttributes(event TransitionEvent) []otellog.KeyValue {
	attrs := make([]otellog.KeyValue, 0, 6)
	if strings.TrimSpace(event.RefName) != "" {
		attrs = append(attrs, otellog.String("ref.name", event.RefName))
	}
	attrs = append(attrs, otellog.String("ref.op", event.Op.String()))
	attrs = append(attrs, anyAttribute("ref.old", event.Old))
	attrs = append(attrs, anyAttribute("ref.new", event.New))
	if event.WatchKey != nil {
		attrs = append(attrs, otellog.String("ref.watch", fmt.Sprint(event.WatchKey)))
	}
	if len(event.Args) > 0 {
		attrs = append(attrs, otellog.Int("ref.args", len(event.Args)))
	}
	return attrs
}

func configAttributes(event ConfigEvent) []otellog.KeyValue {
	attrs := make([]otellog.KeyValue, 0, 2)
	if strings.TrimSpace(event.Path) != "" {
		attrs = append(attrs, otellog.String("config.path", event.Path))
	}
	if strings.TrimSpace(event.Message) != "" {
		attrs = append(attrs, otellog.String("config.message", event.Message))
	}
	return attrs
}

func anyAttribute(key string, value any) otellog.KeyValue {
	switch typed := value.(type) {
	case nil:
		return otellog.String(key, "<nil>")
	case string:
		return otellog.String(key, typed)
	case bool:
		return otellog.Bool(key, typed)
	case int:
		return otellog.Int(key, typed)
	case int8:
		return otellog.Int64(key, int64(typed))
	case int16:
		return otellog.Int64(key, int64(typed))
	case int32:
		return otellog.Int64(key, int64(typed))
	case int64:
		return otellog.Int64(key, typed)
	case uint:
		return otellog.Int64(key, int64(typed))
	case uint8:
		return otellog.Int64(key, int64(typed))
	case uint16:
		return otellog.Int64(key, int64(typed))
	case uint32:
		return otellog.Int64(key, int64(typed))
	case uint64:
		return otellog.Int64(key, int64(typed))
	case float32:
		return otellog.Float64(key, float64(typed))
	case float64:
		return otellog.Float64(key, typed)
	case time.Time:
		return otellog.String(key, typed.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return otellog.String(key, typed.String())
	case error:
		return otellog.String(key, typed.Error())
	default:
		return otellog.String(key, fmt.Sprint(value))
	}
}
