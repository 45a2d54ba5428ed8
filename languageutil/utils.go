package languageutil

import (
	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.English, // fallback
	language.Azerbaijani,
	language.Turkish,
}

var matcher = language.NewMatcher(supported)

var messages = map[string]map[string]string{
	"en": {
		"recommend_in_progress": "A recommendation is already being prepared, please wait",
		"recommend_cooldown":    "Please wait %d seconds before the next recommendation",
		"recommend_failed":      "Sorry, we couldn't analyze this outfit, please try again",
		"recommend_quota":       "The stylist is busy right now, please try again later",
		"recommend_policy":      "Sorry, we can't process these photos",
		"too_few_items":         "Select at least two items for a recommendation",
		"outfit_already_saved":  "This outfit is already saved",
	},
	"az": {
		"recommend_in_progress": "Tövsiyə artıq hazırlanır, xahiş edirik gözləyin",
		"recommend_cooldown":    "Növbəti tövsiyə üçün %d saniyə gözləyin",
		"recommend_failed":      "Təəssüf ki, bu kombini analiz edə bilmədik, yenidən cəhd edin",
		"recommend_quota":       "Stilist hazırda məşğuldur, bir az sonra yenidən cəhd edin",
		"recommend_policy":      "Təəssüf ki, bu şəkilləri emal edə bilmərik",
		"too_few_items":         "Tövsiyə üçün ən azı iki geyim seçin",
		"outfit_already_saved":  "Bu kombin artıq yadda saxlanılıb",
	},
	"tr": {
		"recommend_in_progress": "Öneri zaten hazırlanıyor, lütfen bekleyin",
		"recommend_cooldown":    "Bir sonraki öneri için %d saniye bekleyin",
		"recommend_failed":      "Üzgünüz, bu kombini analiz edemedik, lütfen tekrar deneyin",
		"recommend_quota":       "Stilist şu an meşgul, lütfen daha sonra tekrar deneyin",
		"recommend_policy":      "Üzgünüz, bu fotoğrafları işleyemiyoruz",
		"too_few_items":         "Öneri için en az iki parça seçin",
		"outfit_already_saved":  "Bu kombin zaten kaydedildi",
	},
}

// Message resolves a user-facing string for the Accept-Language value the app
// sends. Unknown languages fall back to English; unknown keys echo the key so
// a missing translation is visible, not silent.
func Message(acceptLanguage string, key string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	catalog, ok := messages[base.String()]
	if !ok {
		catalog = messages["en"]
	}
	if msg, ok := catalog[key]; ok {
		return msg
	}
	if msg, ok := messages["en"][key]; ok {
		return msg
	}
	return key
}
