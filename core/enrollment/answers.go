package enrollment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/exam"
)

var (
	errUnknownQuestion = "question does not belong to this exam"
	errUnknownOption   = "option does not belong to this question"
	errExpectsOption   = "this question expects a selected option"
	errExpectsText     = "this question expects a text answer"
)

// MatchAnswer returns the question in answers to, once the answer is known to fit it.
func MatchAnswer(questions []exam.Question, in AnswerInput) (exam.Question, error) {
	var (
		q     exam.Question
		found bool
	)
	for _, candidate := range questions {
		if candidate.ID == in.QuestionID {
			q, found = candidate, true
			break
		}
	}
	if !found {
		return exam.Question{}, core.NewValidationError(nil, core.FieldError{Field: "question_id", Error: errUnknownQuestion})
	}

	if q.Type.IsChoice() {
		if !in.SelectedOptionID.Valid {
			return exam.Question{}, core.NewValidationError(nil, core.FieldError{Field: "selected_option_id", Error: errExpectsOption})
		}
		if _, ok := q.Option(in.SelectedOptionID.String); !ok {
			return exam.Question{}, core.NewValidationError(nil, core.FieldError{Field: "selected_option_id", Error: errUnknownOption})
		}
	} else if !in.TextAnswer.Valid {
		return exam.Question{}, core.NewValidationError(nil, core.FieldError{Field: "text_answer", Error: errExpectsText})
	}
	return q, nil
}

// NewAttempt builds the ungraded attempt of enrollmentID for in.
func NewAttempt(enrollmentID string, in AnswerInput, answeredAt time.Time) Attempt {
	a := Attempt{
		EnrollmentID: enrollmentID,
		QuestionID:   in.QuestionID,
		AnsweredAt:   answeredAt,
	}
	if in.SelectedOptionID.Valid {
		a.SelectedOptionID = null.StringFrom(in.SelectedOptionID.String)
	} else {
		a.TextAnswer = null.StringFrom(in.TextAnswer.String)
	}
	return a
}
