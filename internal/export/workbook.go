// Package export renders completed sessions as spreadsheets.
package export

import (
	"fmt"
	"io"

	"speak-assessment-service/internal/domain"
	"speak-assessment-service/internal/scoring"

	"github.com/xuri/excelize/v2"
)

const (
	AnswersSheet = "Answers"
	SummarySheet = "Summary"

	timeLayout = "2006-01-02 15:04:05"
)

var answerHeaders = []string{
	"Question", "Kind", "Answered At", "Transcript", "Reference",
	"Accuracy (%)", "Answer", "Correct", "Selected Option",
}

// WriteWorkbook writes an xlsx with one row per answer record and a summary sheet.
// Cells of fields a record does not carry are left blank.
func WriteWorkbook(w io.Writer, c domain.Completion, s scoring.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AnswersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, AnswersSheet, 1, toCells(answerHeaders)); err != nil {
		return err
	}
	for i, rec := range c.AnswerRecords {
		if err := writeRow(f, AnswersSheet, i+2, answerRow(rec)); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Session", c.SessionID},
		{"Section", string(c.Section)},
		{"Completed At", c.CompletedAt.Format(timeLayout)},
		{"Elapsed (s)", c.ElapsedSeconds},
		{"Questions", c.TotalQuestions},
		{"Answered", s.Answered},
		{"Average Accuracy (%)", optional(s.AverageAccuracy)},
		{"Correct", fmt.Sprintf("%d/%d", s.Correct, s.Graded)},
		{"Overall (%)", optional(s.Overall)},
		{"Level", string(s.Level)},
	}
	for i, row := range rows {
		if err := writeRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func answerRow(rec domain.AnswerRecord) []any {
	row := []any{
		rec.QuestionIndex + 1,
		string(rec.Kind),
		rec.Timestamp.Format(timeLayout),
		rec.RawTranscript,
		"", "", "", "", "",
	}
	if rec.ReferenceText != nil {
		row[4] = *rec.ReferenceText
	}
	if rec.AccuracyPercent != nil {
		row[5] = *rec.AccuracyPercent
	}
	if rec.UserAnswerText != nil {
		row[6] = *rec.UserAnswerText
	}
	if rec.IsCorrect != nil {
		row[7] = "no"
		if *rec.IsCorrect {
			row[7] = "yes"
		}
	}
	if rec.SelectedOptionIndex != nil {
		row[8] = *rec.SelectedOptionIndex + 1
	}
	return row
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func optional(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
