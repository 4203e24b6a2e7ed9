package passcode

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

var (
	passCodeTag  = "passcode"
	passCodeText = "{0} is not a valid pass code"
)

// InitValidators registers the pass code validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(passCodeTag, passCodeValidation)
	core.RegisterCustomTranslation(validate, translator, passCodeTag, passCodeText)
}

// passCodeValidation only allows characters of CodeAlphabet.
func passCodeValidation(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return false
		}
	}
	return true
}
