package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
)

func TestWriteResults(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ex := exam.Exam{ID: "e1", Title: "Go basics", PassingScore: 60}
	enrs := []enrollment.Enrollment{
		{
			ID: "n1", StudentID: "s1", Status: enrollment.StatusPassed,
			StartedAt: null.TimeFrom(at), CompletedAt: null.TimeFrom(at.Add(20 * time.Minute)),
			Score: null.IntFrom(90), CertificateID: null.StringFrom("c1"),
		},
		{
			ID: "n2", StudentID: "s2", Status: enrollment.StatusFailed, AssignedBy: null.StringFrom("acme"),
			StartedAt: null.TimeFrom(at), CompletedAt: null.TimeFrom(at.Add(30 * time.Minute)),
			Score: null.IntFrom(45),
		},
		{ID: "n3", StudentID: "s3", Status: enrollment.StatusPendingReview, Score: null.IntFrom(50), CompletedAt: null.TimeFrom(at)},
		{ID: "n4", StudentID: "s4", Status: enrollment.StatusPurchased},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, WriteResults(buf, ex, enrs))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ResultsSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Enrollment ID", rows[0][0])
	assert.Equal(t, []string{
		"n1", "s1", "PASSED", "", "2026-03-01T09:00:00Z", "2026-03-01T09:20:00Z", "90", "yes", "c1",
	}, rows[1])
	assert.Equal(t, "acme", rows[2][3])
	assert.Equal(t, "no", rows[2][7])
	assert.Equal(t, []string{"n4", "s4", "PURCHASED"}, rows[4][:3])

	tests := []struct {
		cell string
		want string
	}{
		{cell: "B1", want: "Go basics"},
		{cell: "B2", want: "60"},
		{cell: "B3", want: "4"},
		{cell: "B4", want: "3"},
		{cell: "B5", want: "1"},
		{cell: "B6", want: "1"},
		{cell: "B7", want: "1"},
		{cell: "B8", want: "68"}, // (90 + 45) / 2 rounded up
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, err := f.GetCellValue(SummarySheet, tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteResults_Empty(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteResults(buf, exam.Exam{Title: "Empty"}, nil))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	avg, err := f.GetCellValue(SummarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "0", avg)
}
