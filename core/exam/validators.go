package exam

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examportal/core"
)

var (
	mcOptionsTag  = "mc_options"
	mcOptionsText = "multiple choice questions need at least 2 options with at least one correct"

	tfOptionsTag  = "tf_options"
	tfOptionsText = "true/false questions need exactly 2 options with exactly one correct"

	saOptionsTag  = "sa_options"
	saOptionsText = "short answer questions take no options"
)

// InitValidators registers the exam validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, mcOptionsTag, mcOptionsText)
	core.RegisterCustomTranslation(validate, translator, tfOptionsTag, tfOptionsText)
	core.RegisterCustomTranslation(validate, translator, saOptionsTag, saOptionsText)
}

// questionStructValidation checks the options of a NewQuestion against its type.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}

	var correct int
	for _, opt := range nq.Options {
		if opt.IsCorrect {
			correct++
		}
	}

	report := func(tag string) {
		sl.ReportError(nq.Options, "options", "Options", tag, "")
	}
	switch nq.Type {
	case TypeMultipleChoice:
		if len(nq.Options) < 2 || correct < 1 {
			report(mcOptionsTag)
		}
	case TypeTrueFalse:
		if len(nq.Options) != 2 || correct != 1 {
			report(tfOptionsTag)
		}
	case TypeShortAnswer:
		if len(nq.Options) > 0 {
			report(saOptionsTag)
		}
	}
}
