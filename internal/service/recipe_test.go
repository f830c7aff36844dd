package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freshkeep-api/internal/model"
)

func TestMatches_Threshold(t *testing.T) {
	recipes := NewRecipeService("", "", time.Second, 10, nil)

	// 3 of 4 김치찌개 ingredients: 0.75 >= 0.7, matches.
	items := []model.Item{
		{Name: "김치"},
		{Name: "돼지고기"},
		{Name: "두부"},
	}
	matched := recipes.Matches(items)

	found := false
	for _, r := range matched {
		if r.Name == "김치찌개" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 김치찌개 to match, got %v", matched)
	}

	// 2 of 4: 0.5 < 0.7, no match.
	matched = recipes.Matches(items[:2])
	for _, r := range matched {
		if r.Name == "김치찌개" {
			t.Errorf("did not expect 김치찌개 with half the ingredients")
		}
	}
}

func TestSuggest_Success(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"김치찌개, 된장찌개, 계란말이"}]}}]}`))
	}))
	defer upstream.Close()

	recipes := NewRecipeService(upstream.URL, "test-key", time.Second, 1500, nil)

	got, err := recipes.Suggest(context.Background(), []string{"김치", "두부"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got.Unavailable != "" {
		t.Fatalf("unexpected degradation: %q", got.Unavailable)
	}
	if got.Recipe != "김치찌개, 된장찌개, 계란말이" {
		t.Errorf("unexpected recipe text %q", got.Recipe)
	}
	if len(got.Recipes) != 3 || got.Recipes[0] != "김치찌개" {
		t.Errorf("unexpected split %v", got.Recipes)
	}
	if got.Tokens <= 0 {
		t.Error("expected a token estimate")
	}
	if got.RemainingFree != 1499 {
		t.Errorf("expected 1499 free calls left, got %d", got.RemainingFree)
	}
}

func TestSuggest_UpstreamErrorDegrades(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	recipes := NewRecipeService(upstream.URL, "test-key", time.Second, 1500, nil)

	got, err := recipes.Suggest(context.Background(), []string{"김치"})
	if err != nil {
		t.Fatalf("soft failures must not error: %v", err)
	}
	if got.Unavailable == "" {
		t.Error("expected an unavailability reason")
	}
	if !strings.Contains(got.Recipe, "추천 불가") {
		t.Errorf("expected a degraded recipe string, got %q", got.Recipe)
	}
}

func TestSuggest_MissingKeyDegrades(t *testing.T) {
	recipes := NewRecipeService("http://unused", "", time.Second, 1500, nil)

	got, err := recipes.Suggest(context.Background(), []string{"김치"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got.Unavailable == "" {
		t.Error("expected degradation when no key is configured")
	}
}

func TestSuggest_QuotaExhaustedDegrades(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"김치찌개"}]}}]}`))
	}))
	defer upstream.Close()

	recipes := NewRecipeService(upstream.URL, "test-key", time.Second, 1, nil)

	if got, err := recipes.Suggest(context.Background(), []string{"김치"}); err != nil || got.Unavailable != "" {
		t.Fatalf("first call should pass: %v %q", err, got.Unavailable)
	}

	got, err := recipes.Suggest(context.Background(), []string{"김치"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got.Unavailable == "" {
		t.Error("expected degradation once the free quota is spent")
	}
	if got.RemainingFree != 0 {
		t.Errorf("expected 0 remaining, got %d", got.RemainingFree)
	}
}

func TestSuggest_EmptyIngredients(t *testing.T) {
	recipes := NewRecipeService("http://unused", "key", time.Second, 1500, nil)

	_, err := recipes.Suggest(context.Background(), []string{"  ", ""})
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSplitRecipeList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"김치찌개, 된장찌개", []string{"김치찌개", "된장찌개"}},
		{"1. 김치찌개\n2. 된장찌개", []string{"김치찌개", "된장찌개"}},
		{"- a\n- b\n- c\n- d\n- e\n- f", []string{"a", "b", "c", "d", "e"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := SplitRecipeList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("SplitRecipeList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitRecipeList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
