package models

import "time"

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Banned bool   `gorm:"default:false" json:"-"`
	LastIp string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status              string       `json:"-"`
	GoogleID            string       `json:"-"`
	AppleID             string       `json:"-"`
	UTMSource           string       `json:"utm_source"`
	Platform            Platform     `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Subscription        Subscription `json:"subscription"`
	ExpirationDate      *time.Time   `json:"-"`
	ConfirmedDeleteDate *time.Time   `json:"-"`

	// Notifications settings
	ReceiveNotifications bool `json:"receive_notifications"`
	// user app image/avatar
	AvatarURL string `json:"avatar_url"`

	// default style tag for recommendations, e.g. casual, formal
	PreferredStyle *string `json:"preferred_style"`

	EnforcedDailyItemLimit *int32 `json:"enforced_daily_item_limit"`
	EnforcedLLMModel       *int32 `json:"enforced_llm_model"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type UserSettingsIn struct {
	ReceiveNotifications bool    `json:"receive_notifications"`
	PreferredStyle       *string `json:"preferred_style"`
}
