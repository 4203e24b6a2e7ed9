package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

var (
	courseTypeTag  = "coursetype"
	courseTypeText = "{0} must be one of: recorded, live"

	videoTypeTag  = "videotype"
	videoTypeText = "{0} must be one of: youtube, vimeo, upload, drive"

	materialTypeTag  = "materialtype"
	materialTypeText = "{0} must be one of: pdf, doc, note"

	noteRequiredTag = "noterequired"
	urlRequiredTag  = "urlrequired"
	requiredText    = "this field is required"
)

// InitValidators registers the course validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseTypeTag, oneOfValidation(CourseTypes))
	core.RegisterCustomTranslation(validate, translator, courseTypeTag, courseTypeText)

	_ = validate.RegisterValidation(videoTypeTag, oneOfValidation(VideoTypes))
	core.RegisterCustomTranslation(validate, translator, videoTypeTag, videoTypeText)

	_ = validate.RegisterValidation(materialTypeTag, oneOfValidation(MaterialTypes))
	core.RegisterCustomTranslation(validate, translator, materialTypeTag, materialTypeText)

	validate.RegisterStructValidation(materialStructValidation, NewMaterial{})
	core.RegisterCustomTranslation(validate, translator, noteRequiredTag, requiredText)
	core.RegisterCustomTranslation(validate, translator, urlRequiredTag, requiredText)
}

func oneOfValidation(choices []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, c := range choices {
			if val == c {
				return true
			}
		}
		return false
	}
}

// materialStructValidation: a note carries its content, pdf and doc materials carry a URL.
func materialStructValidation(sl validator.StructLevel) {
	nm, ok := sl.Current().Interface().(NewMaterial)
	if !ok {
		return
	}
	switch nm.MaterialType {
	case MaterialNote:
		if nm.NoteContent == "" {
			sl.ReportError(nm.NoteContent, "note_content", "NoteContent", noteRequiredTag, "")
		}
	case MaterialPDF, MaterialDoc:
		if nm.MaterialURL == "" {
			sl.ReportError(nm.MaterialURL, "material_url", "MaterialURL", urlRequiredTag, "")
		}
	}
}
