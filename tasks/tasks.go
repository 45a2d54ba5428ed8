package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stylistapi/models"
	"stylistapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type ItemProcessingPayload struct {
	ItemID uint `json:"item_id"`
}

const (
	whitenThreshold = uint8(235)
	whitenBlurSigma = 1.6
)

func NewItemProcessingTask(itemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ItemProcessingPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("process:item", payload), nil
}

func getFileForItem(awsService services.AWSServiceProvider, item models.WardrobeItem) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("[Item: %v] Bucket name: %s\n", item.ID, bucketName)
	fmt.Printf("[Item: %v] Request presigned download url.. ", item.ID)
	if item.ImageURL == nil {
		return nil, "", fmt.Errorf("[Item: %v] Image URL is nil", item.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *item.ImageURL)
	fileName := filepath.Base(*item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, fileName, err
	}
	fmt.Printf("Downloading... %s\n", fileUrl)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, fileName, err
	}

	return fileBytes, fileName, nil
}

// HandleItemProcessingTask runs the wardrobe item pipeline: download the raw
// photo, whiten the background, re-upload as png, ask the stylist model to
// name and categorize the item, then persist and notify.
func HandleItemProcessingTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, stylist services.OutfitStylistProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload ItemProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Item: %v] Start Processing\n", payload.ItemID)
	var item models.WardrobeItem
	res := db.Joins("Owner").First(&item, payload.ItemID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving item for processing %v", payload.ItemID))
		return res.Error
	}
	if item.ImageStatus != "uploaded" {
		saveItemProcessingFail(db, item, "Item photo was not uploaded, please add the item again", false)
		return fmt.Errorf("[Item: %v] Image not uploaded yet, status %s", payload.ItemID, item.ImageStatus)
	}

	item.ProcessingStatus = "generating"
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on saving item mid processing %v", payload.ItemID, err))
		return err
	}

	fileBytes, fileName, err := getFileForItem(awsService, item)
	if err != nil {
		saveItemProcessingFail(db, item, "Failed to read item photo, please add the item again", true)
		return err
	}
	fmt.Printf("[Item: %v] Downloaded file size: %d bytes\n", payload.ItemID, len(fileBytes))

	whitened, err := services.WhitenItemBackground(fileBytes, whitenThreshold, whitenBlurSigma)
	if err != nil {
		fmt.Printf("[Item: %v] Error on whitening background %s: %v\n", payload.ItemID, fileName, err)
		saveItemProcessingFail(db, item, "Failed to prepare item photo, please add the item again", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on whitening background %s: %v", payload.ItemID, fileName, err))
		return err
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	processedKey := fmt.Sprintf("wardrobe/%v/processed-%v.png", item.OwnerID, item.ID)
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, processedKey)
	if presignErr != nil {
		fmt.Printf("[Item: %v] Unable to create presign link for %s: %v\n", item.ID, processedKey, presignErr)
		sentry.CaptureException(presignErr)
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, whitened)
	fmt.Printf("[Item: %v] R2 Upload file size %v, url %s, response body: %s, status code: %d\n", payload.ItemID, len(whitened), uploadUrl, respBody, statusCode)
	if err != nil || statusCode != 200 {
		fmt.Printf("[Item: %v] Error on uploading processed file %s: %v\n", payload.ItemID, processedKey, err)
		saveItemProcessingFail(db, item, "Failed to save processed item photo, please try again", true)
		sentry.CaptureException(err)
		return err
	}

	model := services.Flash25
	modelString := model.String()
	if item.Owner.EnforcedLLMModel != nil {
		model = services.LLMModelName(*item.Owner.EnforcedLLMModel)
		modelString = model.String()
		fmt.Printf("[Item: %v] [ENFORCE MODEL] Using enforced model: %s\n", payload.ItemID, modelString)
	}
	fmt.Printf("[Item: %v] Model: %s\n", payload.ItemID, modelString)

	describeResp, err := stylist.DescribeItem(ctx, services.ImageBlob{MIMEType: "image/png", Data: whitened}, model)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveItemProcessingFail(db, item, "Sorry, it seems this photo contains content that we cannot process.", false)
			sentry.CaptureException(fmt.Errorf("[Item: %v] Content violation on describing item %s: %v", payload.ItemID, processedKey, err))
			return nil
		}
		fmt.Printf("[Item: %v] Error on describing item %s: %v\n", payload.ItemID, processedKey, err)
		saveItemProcessingFail(db, item, "Sorry, we failed to analyze this item photo, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on describing item %s: %v", payload.ItemID, processedKey, err))
		return err
	}
	if describeResp == nil {
		saveItemProcessingFail(db, item, "Sorry, we failed to analyze this item photo, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Response is nil but no error provided on describing %s", payload.ItemID, processedKey))
		return fmt.Errorf("[Item: %v] Response is nil but no error provided on describing %s", payload.ItemID, processedKey)
	}
	fmt.Printf("[Item: %v] LLM Processed: %q, IT: %d, OT: %d, TT: %d, TOT: %d\n", payload.ItemID, describeResp.Response, describeResp.InputTokenCount, describeResp.OutputTokenCount, describeResp.ThoughtsTokenCount, describeResp.TotalTokenCount)

	description, err := services.DecodeModelJSON[services.ItemDescription](describeResp.Response)
	if err != nil {
		fmt.Printf("[Item: %v] Error on parsing Gemini %s AI json %s\n", payload.ItemID, modelString, describeResp.Response)
		saveItemProcessingFail(db, item, "Failed to analyze item photo, please try again later", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on parsing Gemini %s AI json %s", payload.ItemID, modelString, describeResp.Response))
		return err
	}

	if item.Name == "" {
		item.Name = description.Name
	}
	if description.Category != "" && description.Category != item.Category {
		fmt.Printf("[Item: %v] Category corrected %s -> %s\n", payload.ItemID, item.Category, description.Category)
		item.Category = description.Category
	}
	if len(description.Colors) > 0 {
		item.DetectedColors = services.StrPointer(strings.Join(description.Colors, ","))
	}
	item.ImageURL = &processedKey
	item.ProcessingStatus = "completed"
	item.ProcessErrorMessage = nil
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving item %v", payload.ItemID))
		return tx.Error
	}
	fmt.Printf("[Item: %v] Processing finished succesfully..\n", payload.ItemID)
	if item.Owner.ReceiveNotifications {
		fmt.Printf("[Item: %v] Sending notification to user %v\n", payload.ItemID, item.OwnerID)
		services.SendNotification(fbApp, db, item.OwnerID, "Item Ready", fmt.Sprintf("Your item %s is ready for outfits", item.Name), map[string]string{"item_id": fmt.Sprintf("%d", item.ID), "type": "item_processed"})
	} else {
		fmt.Printf("[Item: %v] Notifications disabled, not sending to user %v\n", payload.ItemID, item.OwnerID)
	}
	return nil
}

func saveItemProcessingFail(db *gorm.DB, item models.WardrobeItem, msg string, shouldRetry bool) error {
	item.ProcessRetryTimes = item.ProcessRetryTimes + 1
	item.ProcessErrorMessage = &msg
	if !shouldRetry || item.ProcessRetryTimes >= 3 {
		item.ProcessingStatus = "failed"
	}
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Item %v] Error on saving item for failed status", item.ID))
		return tx.Error
	}
	return nil
}
