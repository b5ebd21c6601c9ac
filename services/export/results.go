package exportsvc

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var resultsHeader = []interface{}{
	"Enrollment ID", "Student ID", "Status", "Assigned By", "Started At", "Completed At", "Score", "Passed", "Certificate ID",
}

// WriteResults writes an XLSX workbook with one row per enrollment of ex and a summary sheet.
func WriteResults(w io.Writer, ex exam.Exam, enrs []enrollment.Enrollment) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), ResultsSheet)
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	if err = setRow(f, ResultsSheet, 1, resultsHeader); err != nil {
		return err
	}
	if err = f.SetRowStyle(ResultsSheet, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	var sum summary
	for i, enr := range enrs {
		sum.add(enr)
		row := []interface{}{
			enr.ID,
			enr.StudentID,
			string(enr.Status),
			enr.AssignedBy.String,
			formatTime(enr.StartedAt.Time),
			formatTime(enr.CompletedAt.Time),
			"",
			passed(enr.Status),
			enr.CertificateID.String,
		}
		if enr.Score.Valid {
			row[6] = enr.Score.Int
		}
		if err = setRow(f, ResultsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err = f.SetColWidth(ResultsSheet, "A", "I", 20); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	f.NewSheet(SummarySheet)
	rows := [][]interface{}{
		{"Exam", ex.Title},
		{"Passing Score", ex.PassingScore},
		{"Enrolled", len(enrs)},
		{"Completed", sum.completed},
		{"Passed", sum.passed},
		{"Failed", sum.failed},
		{"Pending Review", sum.pending},
		{"Average Score", sum.average()},
	}
	for i, row := range rows {
		if err = setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err = f.SetColStyle(SummarySheet, "A", bold); err != nil {
		return errors.Wrap(err, "styling summary")
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "naming cell")
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &values), "writing %s row %d", sheet, row)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func passed(status enrollment.Status) string {
	switch status {
	case enrollment.StatusPassed:
		return "yes"
	case enrollment.StatusFailed:
		return "no"
	}
	return ""
}

type summary struct {
	completed, passed, failed, pending int
	scoreSum, scored                   int
}

func (s *summary) add(enr enrollment.Enrollment) {
	switch enr.Status {
	case enrollment.StatusPassed:
		s.passed++
	case enrollment.StatusFailed:
		s.failed++
	case enrollment.StatusPendingReview:
		s.pending++
	}
	if enr.CompletedAt.Valid {
		s.completed++
	}
	if enr.Score.Valid && enr.Status.IsTerminal() {
		s.scoreSum += enr.Score.Int
		s.scored++
	}
}

// average is the rounded mean score of graded enrollments.
func (s summary) average() int {
	if s.scored == 0 {
		return 0
	}
	return (2*s.scoreSum + s.scored) / (2 * s.scored)
}
