package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// numericValue reports whether value is a Go numeric kind and returns it as float64.
func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint8:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceFloat(value any) (float64, bool) {
	if f, ok := numericValue(value); ok {
		return f, true
	}
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	default:
		return 0, false
	}
}

type parsedTime struct {
	value time.Time
	// calendar dates carry no time of day and ignore the time zone
	dateOnly bool
}

func coerceTime(value any, loc *time.Location) (parsedTime, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return parsedTime{}, false
		}
		return parsedTime{value: v}, true
	case *time.Time:
		if v == nil || v.IsZero() {
			return parsedTime{}, false
		}
		return parsedTime{value: *v}, true
	case string:
		return parseTimeString(v, loc)
	case int:
		return millisTime(float64(v))
	case int64:
		return millisTime(float64(v))
	case float64:
		return millisTime(v)
	case json.Number:
		floatValue, err := v.Float64()
		if err != nil {
			return parsedTime{}, false
		}
		return millisTime(floatValue)
	default:
		return parsedTime{}, false
	}
}

// maxEpochMillis is the widest instant an epoch-milliseconds date can name.
const maxEpochMillis = 8.64e15

func millisTime(ms float64) (parsedTime, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return parsedTime{}, false
	}
	return parsedTime{value: time.UnixMilli(int64(ms))}, true
}

var dateOnlyLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// local layouts are read in the configured zone
var localTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parseTimeString(raw string, loc *time.Location) (parsedTime, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return parsedTime{}, false
	}
	for _, layout := range dateOnlyLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsedTime{value: parsed, dateOnly: true}, true
		}
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsedTime{value: parsed}, true
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localTimestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsedTime{value: parsed}, true
		}
	}
	return parsedTime{}, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatPlainFloat(v, 64)
	case float32:
		return formatPlainFloat(float64(v), 32)
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func formatPlainFloat(v float64, bits int) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(v, 'g', -1, bits)
	}
	return strconv.FormatFloat(v, 'f', -1, bits)
}
