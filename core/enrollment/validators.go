package enrollment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examportal/core"
)

var (
	answerKindTag  = "answer_kind"
	answerKindText = "exactly one of selected_option_id or text_answer is required"
)

// InitValidators registers the enrollment validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(answerStructValidation, AnswerInput{})
	core.RegisterCustomTranslation(validate, translator, answerKindTag, answerKindText)
}

func answerStructValidation(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(AnswerInput)
	if !ok {
		return
	}
	if in.SelectedOptionID.Valid == in.TextAnswer.Valid {
		sl.ReportError(in.SelectedOptionID, "selected_option_id", "SelectedOptionID", answerKindTag, "")
	}
}
