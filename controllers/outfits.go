package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"stylistapi/languageutil"
	"stylistapi/models"
	"stylistapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type RecommendOutfitIn struct {
	ItemIDs []uint  `json:"item_ids" validate:"required,min=2"`
	Style   *string `json:"style" validate:"omitempty,style"`

	// either an explicit temperature or coordinates for a weather lookup
	TemperatureC *float64 `json:"temperature_c"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

type SaveOutfitIn struct {
	ItemIDs      []uint          `json:"item_ids" validate:"required,min=2"`
	Analysis     json.RawMessage `json:"analysis" validate:"required"`
	Style        *string         `json:"style" validate:"omitempty,style"`
	TemperatureC *float64        `json:"temperature_c"`
	LLMModel     *string         `json:"llm_model"`
}

type RecommendOutfitOut struct {
	Analysis        *services.OutfitAnalysis `json:"analysis"`
	FromCache       bool                     `json:"from_cache"`
	Fingerprint     string                   `json:"fingerprint"`
	Model           string                   `json:"model,omitempty"`
	CooldownSeconds int                      `json:"cooldown_seconds"`
}

type SavedOutfitOut struct {
	ID           uint     `json:"id"`
	ItemIDs      []string `json:"item_ids"`
	ItemSetHash  string   `json:"item_set_hash"`
	Analysis     json.RawMessage `json:"analysis"`
	Style        *string  `json:"style"`
	TemperatureC *float64 `json:"temperature_c"`
	LLMModel     *string  `json:"llm_model"`
	CreatedAt    string   `json:"created_at"`
}

type OutfitsController struct {
	Stylists *services.OrchestratorRegistry
	Weather  services.WeatherProvider
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.POST("/recommend", controller.Recommend)
	g.GET("/cooldown", controller.Cooldown)
	g.POST("/save", controller.SaveOutfit)
	g.GET("/list", controller.ListOutfits)
	g.DELETE("/:outfitId", controller.DeleteOutfit)
}

// loadSelection fetches the chosen wardrobe items, verifies ownership and that
// the combination is wearable: every id exists, every item has an uploaded
// image, at most one item per exclusive category.
func loadSelection(db *gorm.DB, ownerID uint, itemIDs []uint) ([]models.WardrobeItem, string, error) {
	var items []models.WardrobeItem
	if err := db.Where("owner_id = ? AND id IN ?", ownerID, itemIDs).Find(&items).Error; err != nil {
		return nil, "Failed to fetch wardrobe items", err
	}
	if len(items) != len(itemIDs) {
		return nil, "Some of the selected items were not found in your wardrobe", errors.New("selection contains unknown items")
	}
	perCategory := map[string]int{}
	for _, item := range items {
		if item.ImageURL == nil || *item.ImageURL == "" {
			return nil, fmt.Sprintf("Item %s has no photo yet", item.Name), errors.New("selection item without image")
		}
		perCategory[item.Category]++
		if models.ExclusiveCategory(item.Category) && perCategory[item.Category] > 1 {
			return nil, fmt.Sprintf("Only one %s can be part of an outfit", item.Category), errors.New("duplicate exclusive category")
		}
	}
	return items, "", nil
}

func (controller *OutfitsController) Recommend(c echo.Context) error {
	var req RecommendOutfitIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	lang := c.Request().Header.Get("Accept-Language")

	items, failMessage, err := loadSelection(db, user.ID, req.ItemIDs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": failMessage})
	}

	style := "casual"
	if user.PreferredStyle != nil && *user.PreferredStyle != "" {
		style = *user.PreferredStyle
	}
	if req.Style != nil && *req.Style != "" {
		style = *req.Style
	}

	temperature := req.TemperatureC
	if temperature == nil && req.Latitude != nil && req.Longitude != nil {
		temp, err := controller.Weather.CurrentTemperature(c.Request().Context(), *req.Latitude, *req.Longitude)
		if err != nil {
			// recommendations still work without weather context
			fmt.Printf("[Weather] Lookup failed for user %v: %v\n", user.ID, err)
		} else {
			temperature = &temp
		}
	}

	selection := make([]services.SelectionItem, 0, len(items))
	for _, item := range items {
		selection = append(selection, services.SelectionItem{
			ID:       UIntToStr(item.ID),
			Category: item.Category,
			ImageKey: *item.ImageURL,
		})
	}

	orchestrator := controller.Stylists.ForOwner(user.ID)
	result, err := orchestrator.GetRecommendation(c.Request().Context(), services.RecommendationRequest{
		Items:       selection,
		Style:       style,
		Temperature: temperature,
	})
	if err != nil {
		return controller.recommendFailure(c, lang, user.ID, orchestrator, err)
	}

	return c.JSON(http.StatusOK, RecommendOutfitOut{
		Analysis:        result.Analysis,
		FromCache:       result.FromCache,
		Fingerprint:     result.Fingerprint,
		Model:           result.Model,
		CooldownSeconds: orchestrator.Gate.RemainingCooldownSeconds(),
	})
}

// recommendFailure maps orchestration errors onto transport codes. Gate
// rejections are expected traffic, only provider failures go to Sentry.
func (controller *OutfitsController) recommendFailure(c echo.Context, lang string, userID uint, orchestrator *services.RecommendationOrchestrator, err error) error {
	var cooldownErr *services.CooldownError
	var providerErr *services.ProviderError
	var exhaustedErr *services.ExhaustedError

	switch {
	case errors.Is(err, services.ErrTooFewItems):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": languageutil.Message(lang, "too_few_items")})
	case errors.Is(err, services.ErrAlreadyInFlight):
		return c.JSON(http.StatusConflict, map[string]string{"error": languageutil.Message(lang, "recommend_in_progress")})
	case errors.As(err, &cooldownErr):
		remaining := orchestrator.Gate.RemainingCooldownSeconds()
		c.Response().Header().Set("Retry-After", fmt.Sprint(remaining))
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error":            fmt.Sprintf(languageutil.Message(lang, "recommend_cooldown"), remaining),
			"cooldown_seconds": remaining,
		})
	case errors.As(err, &providerErr):
		sentry.CaptureException(err)
		fmt.Printf("[Stylist] Provider %s failure for user %v: %v\n", providerErr.Kind, userID, err)
		switch providerErr.Kind {
		case services.ProviderFatalPolicy:
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": languageutil.Message(lang, "recommend_policy")})
		case services.ProviderFatalQuota:
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": languageutil.Message(lang, "recommend_quota")})
		default:
			return c.JSON(http.StatusBadGateway, map[string]string{"error": languageutil.Message(lang, "recommend_failed")})
		}
	case errors.As(err, &exhaustedErr):
		sentry.CaptureException(err)
		fmt.Printf("[Stylist] Chain exhausted for user %v: %v\n", userID, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": languageutil.Message(lang, "recommend_failed")})
	}
	sentry.CaptureException(err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": languageutil.Message(lang, "recommend_failed")})
}

func (controller *OutfitsController) Cooldown(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	orchestrator := controller.Stylists.ForOwner(user.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cooldown_seconds": orchestrator.Gate.RemainingCooldownSeconds(),
	})
}

func (controller *OutfitsController) SaveOutfit(c echo.Context) error {
	var req SaveOutfitIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	lang := c.Request().Header.Get("Accept-Language")

	if !json.Valid(req.Analysis) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Analysis payload is not valid JSON"})
	}

	items, failMessage, err := loadSelection(db, user.ID, req.ItemIDs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": failMessage})
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, UIntToStr(item.ID))
	}
	itemSetHash := services.BuildItemSetHash(ids)

	var existing models.SavedOutfit
	r := db.Limit(1).Find(&existing, "owner_id = ? AND item_set_hash = ?", user.ID, itemSetHash)
	if r.Error != nil {
		sentry.CaptureException(r.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save outfit, please try again"})
	}
	if r.RowsAffected > 0 {
		fmt.Printf("[Outfits] Duplicate save rejected for user %v, hash %s, existing id %v\n", user.ID, itemSetHash, existing.ID)
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":     languageutil.Message(lang, "outfit_already_saved"),
			"outfit_id": existing.ID,
		})
	}

	outfit := models.SavedOutfit{
		OwnerID:        user.ID,
		ItemIDs:        pq.StringArray(ids),
		ItemSetHash:    itemSetHash,
		AnalysisJSON:   string(req.Analysis),
		PreferredStyle: req.Style,
		WeatherTempC:   req.TemperatureC,
		LLMModel:       req.LLMModel,
	}
	if err := db.Create(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save outfit, please try again"})
	}
	fmt.Printf("[Outfits] Saved outfit %v for user %v, hash %s\n", outfit.ID, user.ID, itemSetHash)

	return c.JSON(http.StatusCreated, outfitToResponse(outfit))
}

func outfitToResponse(outfit models.SavedOutfit) SavedOutfitOut {
	return SavedOutfitOut{
		ID:           outfit.ID,
		ItemIDs:      []string(outfit.ItemIDs),
		ItemSetHash:  outfit.ItemSetHash,
		Analysis:     json.RawMessage(outfit.AnalysisJSON),
		Style:        outfit.PreferredStyle,
		TemperatureC: outfit.WeatherTempC,
		LLMModel:     outfit.LLMModel,
		CreatedAt:    outfit.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *OutfitsController) ListOutfits(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	query := db.Where("owner_id = ?", user.ID).Order("created_at DESC")
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit parameter"})
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var outfits []models.SavedOutfit
	if err := query.Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfits"})
	}

	responses := make([]SavedOutfitOut, 0, len(outfits))
	for _, outfit := range outfits {
		responses = append(responses, outfitToResponse(outfit))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"outfits": responses})
}

func (controller *OutfitsController) DeleteOutfit(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var outfitId uint
	if err := echo.PathParamsBinder(c).Uint("outfitId", &outfitId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	result := db.Where("id = ? AND owner_id = ?", outfitId, user.ID).Delete(&models.SavedOutfit{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete outfit"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	fmt.Printf("[Outfits] Deleted outfit %v for user %v\n", outfitId, user.ID)
	return c.JSON(http.StatusOK, map[string]string{"message": "deleted"})
}
