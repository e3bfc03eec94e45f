package logging

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID is the standardized structured logging key for batch run identifiers.
	FieldBatchID = "batch_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldBakeGroup is the standardized structured logging key for bake group names.
	FieldBakeGroup = "bake_group"
	// FieldSituation is the standardized structured logging key for lighting situations.
	FieldSituation = "situation"
	// FieldPartition is the standardized structured logging key for partition indices.
	FieldPartition = "partition"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the kind of event a log line records.
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

var highlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldSituation,
	FieldPartition,
	"error",
	FieldErrorHint,
	FieldImpact,
	"renders_performed",
	"renders_skipped",
	"renders_existing",
	"partitions",
	"situations",
	"faces",
	"vertices",
	"hdr_range",
	"atlas_size",
	"stage_duration",
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, FieldBatchID, "digest", "path":
		return true
	default:
		return false
	}
}

// orderFields moves highlighted keys to the front, keeping relative order otherwise.
func orderFields(fields []kv) {
	rank := func(key string) int {
		if idx := slices.Index(highlightKeys, key); idx >= 0 {
			return idx
		}
		return len(highlightKeys)
	}
	slices.SortStableFunc(fields, func(a, b kv) int {
		return rank(a.key) - rank(b.key)
	})
}

func displayLabel(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	if label == "" {
		return key
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	if strings.HasSuffix(key, "_bytes") && v.Kind() == slog.KindInt64 {
		return FormatBytes(v.Int64())
	}
	if strings.HasSuffix(key, "_duration") && v.Kind() == slog.KindDuration {
		return v.Duration().Round(time.Millisecond).String()
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	return formatValue(v)
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
