package models

import "github.com/lib/pq"

// SavedOutfit is a persisted recommendation result. At most one row exists per
// owner + item_set_hash; the hash is content-addressed over the sorted item ids
// so re-saving the same combination in a different selection order is rejected.
type SavedOutfit struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `gorm:"index" json:"-"`

	ItemIDs     pq.StringArray `gorm:"type:text[]" json:"item_ids"`
	ItemSetHash string         `gorm:"index" json:"item_set_hash"`

	// the OutfitAnalysis payload as returned by the stylist, verbatim
	AnalysisJSON string `gorm:"type:text" json:"analysis_json"`

	// context at the moment of saving
	PreferredStyle *string  `json:"preferred_style"`
	WeatherTempC   *float64 `json:"weather_temp_c"`

	LLMModel *string `json:"llm_model"`
}
