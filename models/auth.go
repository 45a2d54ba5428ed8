package models

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type AppleAuthRequest struct {
	IdentityToken     string `json:"identity_token" validate:"required"`
	Platform          string `json:"platform" validate:"required"`
	AuthorizationCode string `json:"authorization_code" validate:"required"`
}

type SignUpIn struct {
	ProfileIn
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type ProfileIn struct {
	Name      string `json:"name" validate:"required"`
	UTMSource string `json:"utm_source"`
}

type UserMeInfoOut struct {
	Id                   string  `json:"id"`
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	AvatarURL            string  `json:"avatar_url"`
	ReceiveNotifications bool    `json:"receive_notifications"`
	PreferredStyle       *string `json:"preferred_style"`
	Subscription         string  `json:"subscription"`
}
