package models

type WardrobeItem struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	Category    string      `json:"category"` // top, bottom, outer, shoes, accessory
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	Status      string      `json:"status"`       // temporary, in_closet
	ImageStatus string      `json:"image_status"` // draft, uploaded

	// background whitening + auto categorization pipeline
	ProcessingStatus    string  `json:"processing_status"` // idle, pending, generating, completed, failed
	ProcessRetryTimes   int     `json:"process_retry_times"`
	ProcessErrorMessage *string `json:"process_error_message"`

	ImageURL *string `json:"image_url"`

	// dominant colors detected by the LLM during processing, comma separated
	DetectedColors *string `json:"detected_colors"`
}

// ExclusiveCategory reports whether at most one item of this category may be
// part of a single selection. Accessories are unlimited.
func ExclusiveCategory(category string) bool {
	switch category {
	case "top", "bottom", "outer", "shoes":
		return true
	}
	return false
}
