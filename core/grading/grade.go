package grading

import (
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
)

// Result is the outcome of scoring a set of attempts against an exam.
type Result struct {
	Attempts []enrollment.Attempt // one per answered question, in question order
	Earned   int
	Total    int
	Score    int // percentage, rounded half up
	Pending  int // short answers awaiting manual review
}

// Percent returns round-half-up(100 * earned / total), or 0 when total is 0.
func Percent(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*earned + total) / (2 * total)
}

// Judge decides whether a is a correct answer to q. A null result means a human must decide.
//
// Choice questions accept any option marked correct. Short answers are accepted as soon as they
// are not blank, unless the exam asks for manual review.
func Judge(q exam.Question, a enrollment.Attempt, manualReview bool) null.Bool {
	if q.Type.IsChoice() {
		if !a.SelectedOptionID.Valid {
			return null.BoolFrom(false)
		}
		opt, ok := q.Option(a.SelectedOptionID.String)
		return null.BoolFrom(ok && opt.IsCorrect)
	}

	if !a.TextAnswer.Valid || strings.TrimSpace(a.TextAnswer.String) == "" {
		return null.BoolFrom(false)
	}
	if manualReview {
		return null.Bool{}
	}
	return null.BoolFrom(true)
}

// Grade judges every attempt and scores the result. Attempts to questions that are not part of
// the exam are dropped; unanswered questions earn nothing but still count toward the total.
func Grade(questions []exam.Question, attempts []enrollment.Attempt, manualReview bool) Result {
	byQuestion := indexAttempts(attempts)
	judged := make([]enrollment.Attempt, 0, len(attempts))
	for _, q := range questions {
		if a, ok := byQuestion[q.ID]; ok {
			a.IsCorrect = Judge(q, a, manualReview)
			judged = append(judged, a)
		}
	}
	return Tally(questions, judged)
}

// Tally scores attempts that were already judged.
func Tally(questions []exam.Question, attempts []enrollment.Attempt) Result {
	byQuestion := indexAttempts(attempts)
	res := Result{Attempts: make([]enrollment.Attempt, 0, len(attempts))}
	for _, q := range questions {
		res.Total += q.Points

		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		res.Attempts = append(res.Attempts, a)
		switch {
		case !a.IsCorrect.Valid:
			res.Pending++
		case a.IsCorrect.Bool:
			res.Earned += q.Points
		}
	}
	res.Score = Percent(res.Earned, res.Total)
	return res
}

func indexAttempts(attempts []enrollment.Attempt) map[string]enrollment.Attempt {
	byQuestion := make(map[string]enrollment.Attempt, len(attempts))
	for _, a := range attempts {
		byQuestion[a.QuestionID] = a
	}
	return byQuestion
}
