package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

// StyleTag is the preferred look the stylist should aim for.
type StyleTag string

const (
	StyleCasual   StyleTag = "casual"
	StyleFormal   StyleTag = "formal"
	StyleSport    StyleTag = "sport"
	StyleBusiness StyleTag = "business"
	StyleEvening  StyleTag = "evening"
)

func (s *StyleTag) Scan(value interface{}) error {
	*s = StyleTag(value.(string))
	return nil
}

func (s StyleTag) Value() (string, error) {
	return string(s), nil
}

func ValidateStyle(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^casual|formal|sport|business|evening$", value)
	return matched
}

func ValidateStyleRaw(value string) bool {
	matched, _ := regexp.MatchString("^casual|formal|sport|business|evening$", value)
	return matched
}
