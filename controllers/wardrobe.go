package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"stylistapi/models"
	"stylistapi/services"
	"stylistapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const freeItemLimit = 20

type CreateItemIn struct {
	Name        string  `json:"name" validate:"omitempty,max=100"`
	FileName    *string `json:"file_name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,oneof=top bottom outer shoes accessory"`
	AddToCloset *bool   `json:"add_to_closet" validate:"required"`
}

type ItemResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Category         string  `json:"category"`
	Status           string  `json:"status"`
	ProcessingStatus string  `json:"processing_status"`
	DetectedColors   *string `json:"detected_colors"`
	Uri              *string `json:"uri,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ItemCreatedResponse struct {
	Item          ItemResponse `json:"item"`
	FileUploadUrl string       `json:"file_upload_url"`
}

type WardrobeListResponse struct {
	Tops        []ItemResponse `json:"tops"`
	Bottoms     []ItemResponse `json:"bottoms"`
	Outerwear   []ItemResponse `json:"outerwear"`
	Shoes       []ItemResponse `json:"shoes"`
	Accessories []ItemResponse `json:"accessories"`
}

type WardrobeController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
}

func (controller *WardrobeController) WardrobeRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateItem)
	g.POST("/:itemId/uploaded", controller.ConfirmUpload)
	g.GET("/list", controller.ListItems)
	g.DELETE("/:itemId", controller.DeleteItem)
}

func (controller *WardrobeController) CreateItem(c echo.Context) error {
	var req CreateItemIn
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

	if req.FileName == nil || *req.FileName == "" {
		sentry.CaptureException(fmt.Errorf("Image was not provided when creating item %s, user %v", req.Name, user.ID))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Sorry, it seems image was not provided, please try again"})
	}
	if !services.IsAllowedImageFile(*req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image format"})
	}

	if string(user.Subscription) == "free" {
		var totalItemCount int64
		if err := db.Model(&models.WardrobeItem{}).Where("owner_id = ?", user.ID).Count(&totalItemCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get wardrobe data"})
		}
		fmt.Printf("[User %v] Free plan, item count: %v\n", user.ID, totalItemCount)
		if totalItemCount >= freeItemLimit {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the free limit of %v items, please subscribe", freeItemLimit)})
		}
	}

	if user.EnforcedDailyItemLimit != nil {
		var dailyItemCount int64
		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&models.WardrobeItem{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyItemCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get wardrobe data"})
		}
		fmt.Printf("[User %v] Enforced daily limit, item count: %v\n", user.ID, dailyItemCount)
		if dailyItemCount >= int64(*user.EnforcedDailyItemLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the limit of %v daily items. Please wait for the next day.", *user.EnforcedDailyItemLimit)})
		}
	}

	item := models.WardrobeItem{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		OwnerID:     user.ID,
		Status:      IfThenElse(req.AddToCloset != nil && *req.AddToCloset, "in_closet", "temporary").(string),
		ImageStatus: "draft",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("wardrobe/%v/%s", user.ID, *req.FileName)

	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	item.ImageURL = &safeFileName
	if presignErr != nil {
		log.Printf("Unable to presign generate for %s!, %s", item.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating item with attachment",
		})
	}
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	response := ItemCreatedResponse{
		Item:          itemToResponse(item, nil),
		FileUploadUrl: uploadUrl,
	}
	return c.JSON(http.StatusCreated, response)
}

// ConfirmUpload marks the image as present in R2 and kicks off the background
// whitening + auto description pipeline.
func (controller *WardrobeController) ConfirmUpload(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var item models.WardrobeItem
	r := db.Limit(1).Find(&item, "id = ? AND owner_id = ?", itemId, user.ID)
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch item"})
	}
	if r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
	}

	item.ImageStatus = "uploaded"
	item.ProcessingStatus = "pending"
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to update item status, please try again"})
	}

	task, err := tasks.NewItemProcessingTask(item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("process"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	fmt.Println("[Queue] Process item task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusOK, itemToResponse(item, nil))
}

func itemToResponse(item models.WardrobeItem, uri *string) ItemResponse {
	return ItemResponse{
		ID:               item.ID,
		Name:             item.Name,
		Description:      item.Description,
		Category:         item.Category,
		Status:           item.Status,
		ProcessingStatus: item.ProcessingStatus,
		DetectedColors:   item.DetectedColors,
		Uri:              uri,
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// populatePresignedItemImages enriches raw wardrobe models with presigned read
// URLs concurrently, with a direct R2 failsafe when the cache layer itself
// fails.
func (controller *WardrobeController) populatePresignedItemImages(ctx context.Context, items []models.WardrobeItem) []ItemResponse {
	if len(items) == 0 {
		return []ItemResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ItemResponse, len(items))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, wardrobeItem := range items {
		wg.Add(1)
		go func(index int, item models.WardrobeItem) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
						// imageUrl remains empty, but we don't fail the entire request.
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = itemToResponse(item, &imageUrl)
		}(i, wardrobeItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *WardrobeController) ListItems(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var items []models.WardrobeItem
	if err := db.Where("owner_id = ?", user.ID).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe"})
	}
	processedResponses := controller.populatePresignedItemImages(c.Request().Context(), items)

	response := WardrobeListResponse{
		Tops:        []ItemResponse{},
		Bottoms:     []ItemResponse{},
		Outerwear:   []ItemResponse{},
		Shoes:       []ItemResponse{},
		Accessories: []ItemResponse{},
	}
	for _, resp := range processedResponses {
		switch resp.Category {
		case "top":
			response.Tops = append(response.Tops, resp)
		case "bottom":
			response.Bottoms = append(response.Bottoms, resp)
		case "outer":
			response.Outerwear = append(response.Outerwear, resp)
		case "shoes":
			response.Shoes = append(response.Shoes, resp)
		case "accessory":
			response.Accessories = append(response.Accessories, resp)
		}
	}

	return c.JSON(http.StatusOK, response)
}

func (controller *WardrobeController) DeleteItem(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	result := db.Where("id = ? AND owner_id = ?", itemId, user.ID).Delete(&models.WardrobeItem{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete item"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
	}
	fmt.Printf("[Wardrobe] Deleted item %v for user %v\n", itemId, user.ID)
	return c.JSON(http.StatusOK, map[string]string{"message": "deleted"})
}
