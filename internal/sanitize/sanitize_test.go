package sanitize

import (
	"encoding/json"
	"testing"
	"time"

	"freshkeep-api/internal/model"
)

var testNow = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func TestRecord_Defaults(t *testing.T) {
	item := Record(RawRecord{}, testNow)

	if item.Name != PlaceholderName {
		t.Errorf("expected placeholder name, got %q", item.Name)
	}
	if item.Qty != 1 {
		t.Errorf("expected qty 1, got %d", item.Qty)
	}
	if item.Storage != model.DefaultStorage {
		t.Errorf("expected default storage, got %q", item.Storage)
	}
	if !item.Expiry.Equal(testNow) {
		t.Errorf("expected expiry to fall back to now, got %v", item.Expiry)
	}
}

func TestRecord_GarbageIn(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
	}{
		{"nil fields", RawRecord{}},
		{"wrong types", RawRecord{Name: 42, Qty: "abc", Storage: 7, Expiry: true}},
		{"negative qty", RawRecord{Name: "milk", Qty: -3}},
		{"zero qty", RawRecord{Name: "milk", Qty: 0}},
		{"fractional qty", RawRecord{Name: "milk", Qty: 2.5}},
		{"unknown storage", RawRecord{Name: "milk", Storage: "XX"}},
		{"whitespace name", RawRecord{Name: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Record(tt.raw, testNow)
			if item.Name == "" {
				t.Error("name must never be empty")
			}
			if item.Qty < 1 {
				t.Errorf("qty must be >= 1, got %d", item.Qty)
			}
			if !model.KnownStorage(item.Storage) {
				t.Errorf("storage must be a known tag, got %q", item.Storage)
			}
			if item.Expiry.IsZero() {
				t.Error("expiry must resolve to an instant")
			}
		})
	}
}

func TestRecord_ValidInput(t *testing.T) {
	expiry := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	item := Record(RawRecord{
		Name:    "  Whole Milk ",
		Qty:     float64(3),
		Storage: "fr",
		Expiry:  "2025-06-20T12:00:00Z",
	}, testNow)

	if item.Name != "Whole Milk" {
		t.Errorf("expected trimmed name, got %q", item.Name)
	}
	if item.Qty != 3 {
		t.Errorf("expected qty 3, got %d", item.Qty)
	}
	if item.Storage != model.StorageFrozen {
		t.Errorf("expected FR, got %q", item.Storage)
	}
	if !item.Expiry.Equal(expiry) {
		t.Errorf("expected %v, got %v", expiry, item.Expiry)
	}
}

func TestQuantity_Forms(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{3, 3, true},
		{int64(7), 7, true},
		{float64(4), 4, true},
		{2.5, 0, false},
		{json.Number("9"), 9, true},
		{json.Number("1.5"), 0, false},
		{" 12 ", 12, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}

	for _, tt := range tests {
		got, ok := Quantity(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Quantity(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInstant_Forms(t *testing.T) {
	want := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
	}{
		{"time.Time", want},
		{"RFC3339", "2025-06-20T00:00:00Z"},
		{"date only", "2025-06-20"},
		{"epoch seconds int", int(want.Unix())},
		{"epoch seconds int64", want.Unix()},
		{"epoch seconds float", float64(want.Unix())},
		{"seconds pair", map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Instant(tt.in)
			if !ok {
				t.Fatalf("Instant(%v) not ok", tt.in)
			}
			if !got.Equal(want) {
				t.Errorf("Instant(%v) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestInstant_Rejects(t *testing.T) {
	for _, in := range []any{nil, "", "not a date", true, time.Time{}} {
		if _, ok := Instant(in); ok {
			t.Errorf("Instant(%v) should not be ok", in)
		}
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"three days out", time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC), 3},
		{"four days out", time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), 4},
		{"partial day rounds up", time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC), 1},
		{"same instant", now, 0},
		{"already expired", time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysLeft(tt.expiry, now); got != tt.want {
				t.Errorf("DaysLeft = %d, want %d", got, tt.want)
			}
		})
	}
}
