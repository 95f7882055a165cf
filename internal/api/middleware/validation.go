package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ISO-639-1 style codes, optionally with a region subtag ("pt-BR").
var languageCodePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2,4})?$`)

// RegisterValidations installs custom binding rules on gin's validator.
// Safe to call more than once.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("langcode", func(fl validator.FieldLevel) bool {
		return languageCodePattern.MatchString(fl.Field().String())
	})
}
