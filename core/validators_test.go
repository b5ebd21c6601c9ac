package core_test

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examportal/core"
)

type sample struct {
	Title  string `json:"title" validate:"notblank"`
	ExamID string `json:"exam_id" validate:"required"`
	Kind   string `json:"kind" validate:"oneof=MULTIPLE_CHOICE TRUE_FALSE"`
}

func TestInitValidators(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	err := validate.Struct(sample{Title: "  ", Kind: "ESSAY"})
	require.Error(t, err)
	errs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)

	assert.Equal(t, map[string]string{
		"title":   "this field cannot be blank",
		"exam_id": "this field is required",
		"kind":    "must be one of: MULTIPLE_CHOICE, TRUE_FALSE",
	}, core.FieldErrors(errs, translator))

	assert.NoError(t, validate.Struct(sample{Title: "Go", ExamID: "e1", Kind: "TRUE_FALSE"}))
}
