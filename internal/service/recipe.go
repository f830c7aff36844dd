package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"freshkeep-api/internal/model"
)

// Recipe is one entry of the built-in recipe table.
type Recipe struct {
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
}

// recipeTable is the static lookup used for offline matching. Matching is
// by ingredient-name overlap, so the names here double as match keys.
var recipeTable = []Recipe{
	{Name: "된장찌개", Ingredients: []string{"두부", "감자", "양파", "된장", "애호박"}},
	{Name: "김치찌개", Ingredients: []string{"김치", "돼지고기", "두부", "양파"}},
	{Name: "계란말이", Ingredients: []string{"계란", "당근", "양파", "대파"}},
	{Name: "제육볶음", Ingredients: []string{"돼지고기", "양파", "고추장", "대파"}},
	{Name: "감자볶음", Ingredients: []string{"감자", "양파", "당근"}},
	{Name: "미역국", Ingredients: []string{"미역", "소고기", "마늘"}},
}

// matchThreshold is the minimum fraction of a recipe's ingredients that
// must be present in the inventory for the recipe to match.
const matchThreshold = 0.7

// Suggestion is the outcome of one AI suggestion call. When the upstream
// model is unreachable or over quota, Unavailable carries the reason and
// the call still counts as a success: suggestion quality degrades, the
// endpoint does not fail.
type Suggestion struct {
	Recipe        string   `json:"recipe"`
	Recipes       []string `json:"recipes,omitempty"`
	Tokens        int      `json:"tokens"`
	RemainingFree int64    `json:"remainingFree"`
	Unavailable   string   `json:"unavailable,omitempty"`
}

// RecipeService answers "what can I cook" two ways: a static table match
// over the live inventory, and a proxied call to a hosted generative
// model. The proxy owns the API key and the free-tier quota counter, so
// neither ever reaches a client.
type RecipeService struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	freeLimit int64

	// rdb tracks the free-tier counter across instances; when nil the
	// localCount fallback keeps the counter per-process.
	rdb        *redis.Client
	localCount atomic.Int64
}

// NewRecipeService creates the recipe service. rdb may be nil.
func NewRecipeService(endpoint, apiKey string, timeout time.Duration, freeLimit int64, rdb *redis.Client) *RecipeService {
	return &RecipeService{
		endpoint:  endpoint,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		freeLimit: freeLimit,
		rdb:       rdb,
	}
}

// Matches returns the recipes whose ingredient lists are mostly covered
// by the given inventory.
func (s *RecipeService) Matches(items []model.Item) []Recipe {
	have := make(map[string]bool, len(items))
	for _, item := range items {
		have[strings.TrimSpace(item.Name)] = true
	}

	matched := make([]Recipe, 0)
	for _, recipe := range recipeTable {
		hits := 0
		for _, ing := range recipe.Ingredients {
			if have[ing] {
				hits++
			}
		}
		if len(recipe.Ingredients) > 0 && float64(hits)/float64(len(recipe.Ingredients)) >= matchThreshold {
			matched = append(matched, recipe)
		}
	}
	return matched
}

// generateRequest is the upstream generateContent payload shape.
type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// Suggest asks the hosted model for dishes cookable from the given
// ingredients. Upstream failures (missing key, quota exhausted, network
// or parse errors) degrade to a Suggestion whose Unavailable field names
// the reason; only invalid input is an error.
func (s *RecipeService) Suggest(ctx context.Context, ingredients []string) (Suggestion, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if t := strings.TrimSpace(ing); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return Suggestion{}, Invalidf("at least one ingredient is required")
	}

	if s.apiKey == "" {
		return s.unavailable("api key not configured"), nil
	}

	count, err := s.bumpQuota(ctx)
	if err != nil {
		return s.unavailable(fmt.Sprintf("quota check failed: %v", err)), nil
	}
	remaining := s.freeLimit - count
	if remaining < 0 {
		remaining = 0
	}
	if count > s.freeLimit {
		return s.unavailable("free quota exhausted"), nil
	}

	prompt := fmt.Sprintf(
		"다음 재료로 만들 수 있는 요리를 최대 5개, 쉼표로 구분해서 요리 이름만 답해줘: %s",
		strings.Join(cleaned, ", "),
	)

	req := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return s.unavailable(fmt.Sprintf("encode request: %v", err)), nil
	}

	url := fmt.Sprintf("%s?key=%s", s.endpoint, s.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return s.unavailable(fmt.Sprintf("build request: %v", err)), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return s.unavailable(fmt.Sprintf("upstream unreachable: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.unavailable(fmt.Sprintf("upstream status %d", resp.StatusCode)), nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return s.unavailable(fmt.Sprintf("read response: %v", err)), nil
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return s.unavailable(fmt.Sprintf("decode response: %v", err)), nil
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return s.unavailable("empty response"), nil
	}

	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	return Suggestion{
		Recipe:        text,
		Recipes:       SplitRecipeList(text),
		Tokens:        estimateTokens(prompt) + estimateTokens(text),
		RemainingFree: remaining,
	}, nil
}

func (s *RecipeService) unavailable(reason string) Suggestion {
	return Suggestion{
		Recipe:      fmt.Sprintf("추천 불가 (사유: %s)", reason),
		Unavailable: reason,
	}
}

// bumpQuota increments and returns the free-tier call counter.
func (s *RecipeService) bumpQuota(ctx context.Context) (int64, error) {
	if s.rdb == nil {
		return s.localCount.Add(1), nil
	}
	return s.rdb.Incr(ctx, "recipe:free_calls").Result()
}

// SplitRecipeList splits a model answer into at most five dish names,
// accepting both comma- and newline-separated answers.
func SplitRecipeList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(f), "-*0123456789. "))
		if f == "" {
			continue
		}
		out = append(out, f)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
