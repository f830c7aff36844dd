// Package sanitize normalizes arbitrary record-like input into well-formed
// inventory items. Every function here is pure and total: no I/O, no error
// returns, garbage in gives defaults out.
package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"freshkeep-api/internal/model"
)

// PlaceholderName is written when input carries no usable name.
const PlaceholderName = "(unnamed)"

// RawRecord is an arbitrary partial record as it arrives from a client,
// a stored document, or a backup. Fields are deliberately untyped: the
// original data passes through JSON, so numbers may be float64, dates may
// be strings, epoch seconds, or {seconds, nanoseconds} pairs.
type RawRecord struct {
	Name    any `json:"name"`
	Qty     any `json:"qty"`
	Storage any `json:"storage"`
	Expiry  any `json:"expiry"`
}

// RawFromItem converts a typed item back to raw form, used when merging
// stored state with a partial update.
func RawFromItem(item model.Item) RawRecord {
	return RawRecord{
		Name:    item.Name,
		Qty:     item.Qty,
		Storage: string(item.Storage),
		Expiry:  item.Expiry,
	}
}

// Record produces a well-formed item from arbitrary input. The result
// always has a non-empty name, qty >= 1, a known storage tag, and a
// resolvable expiry (falling back to now).
func Record(raw RawRecord, now time.Time) model.Item {
	item := model.Item{
		Name:    PlaceholderName,
		Qty:     1,
		Storage: model.DefaultStorage,
	}

	if name, ok := raw.Name.(string); ok {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			item.Name = trimmed
		}
	}

	if qty, ok := Quantity(raw.Qty); ok && qty >= 1 {
		item.Qty = qty
	}

	if s, ok := raw.Storage.(string); ok {
		tag := model.StorageLocation(strings.ToUpper(strings.TrimSpace(s)))
		if model.KnownStorage(tag) {
			item.Storage = tag
		}
	}

	if loc, ok := raw.Storage.(model.StorageLocation); ok && model.KnownStorage(loc) {
		item.Storage = loc
	}

	expiry, ok := Instant(raw.Expiry)
	if !ok {
		expiry = now
	}
	item.Expiry = expiry.UTC()

	return item
}

// Quantity coerces the JSON-shaped quantity forms into an integer.
// Fractional and non-numeric values are rejected.
func Quantity(v any) (int, bool) {
	switch q := v.(type) {
	case int:
		return q, true
	case int64:
		return int(q), true
	case float64:
		if q != math.Trunc(q) {
			return 0, false
		}
		return int(q), true
	case json.Number:
		n, err := q.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Instant normalizes the accepted point-in-time representations into one
// canonical UTC instant: a time.Time, an RFC3339 or YYYY-MM-DD string,
// epoch seconds, or a {seconds, nanoseconds} pair. Returns ok=false when
// the value is missing or unparseable.
func Instant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		return parseInstantString(t)
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
		return time.Time{}, false
	case map[string]any:
		return instantFromPair(t)
	}
	return time.Time{}, false
}

// instantFromPair handles the structured {seconds, nanoseconds} timestamp
// shape emitted by document stores.
func instantFromPair(m map[string]any) (time.Time, bool) {
	sec, ok := Quantity(m["seconds"])
	if !ok {
		return time.Time{}, false
	}
	nsec, _ := Quantity(m["nanoseconds"])
	return time.Unix(int64(sec), int64(nsec)).UTC(), true
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseInstantString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DaysLeft computes the whole days until expiry, rounding partial days up.
// Negative values mean the item already expired.
func DaysLeft(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}
