package handler

import (
	"encoding/json"
	"net/http"

	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/apierror"
	"freshkeep-api/pkg/response"
)

// RecipeHandler handles recipe matching and AI suggestion requests.
type RecipeHandler struct {
	recipes   *service.RecipeService
	inventory *service.InventoryService
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(recipes *service.RecipeService, inventory *service.InventoryService) *RecipeHandler {
	return &RecipeHandler{
		recipes:   recipes,
		inventory: inventory,
	}
}

// Matches handles GET /api/v1/recipes/matches
func (h *RecipeHandler) Matches(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	items, err := h.inventory.List(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	matched := h.recipes.Matches(items)
	response.OK(w, map[string]interface{}{
		"recipes": matched,
		"count":   len(matched),
	})
}

// suggestRequest carries the ingredient list for an AI suggestion. When
// empty, the caller's current inventory is used.
type suggestRequest struct {
	Ingredients []string `json:"ingredients"`
}

// Suggest handles POST /api/v1/recipes/suggest
//
// Upstream AI failures are not surfaced as HTTP errors: the response is
// always 200 with the suggestion degraded to an unavailability notice, so
// a flaky model never breaks the kitchen view.
func (h *RecipeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	ingredients := req.Ingredients
	if len(ingredients) == 0 {
		items, err := h.inventory.List(r.Context(), sess)
		if err != nil {
			serviceError(w, err)
			return
		}
		for _, item := range items {
			ingredients = append(ingredients, item.Name)
		}
	}

	suggestion, err := h.recipes.Suggest(r.Context(), ingredients)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, suggestion)
}
