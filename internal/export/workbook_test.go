package export

import (
	"bytes"
	"testing"
	"time"

	"speak-assessment-service/internal/domain"
	"speak-assessment-service/internal/scoring"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ptr[T any](v T) *T { return &v }

func TestWriteWorkbook(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	completion := domain.Completion{
		SessionID: "s-1",
		Section:   domain.SectionListening,
		AnswerRecords: []domain.AnswerRecord{
			{
				QuestionIndex:   0,
				Kind:            domain.KindReadAloud,
				Timestamp:       at,
				RawTranscript:   "hello world",
				ReferenceText:   ptr("Hello world."),
				AccuracyPercent: ptr(100),
			},
			{
				QuestionIndex:       1,
				Kind:                domain.KindListening,
				Timestamp:           at,
				UserAnswerText:      ptr("At nine"),
				IsCorrect:           ptr(false),
				SelectedOptionIndex: ptr(0),
			},
		},
		TotalQuestions: 2,
		ElapsedSeconds: 42,
		CompletedAt:    at,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, completion, scoring.Summarize(completion.AnswerRecords)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{AnswersSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(AnswersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, answerHeaders, rows[0])
	require.Equal(t, []string{"1", "read_aloud", "2026-10-14 09:30:00", "hello world", "Hello world.", "100"}, rows[1])
	require.Equal(t, []string{"2", "listening", "2026-10-14 09:30:00", "", "", "", "At nine", "no", "1"}, rows[2])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Equal(t, []string{"Session", "s-1"}, summary[0])
	require.Equal(t, []string{"Average Accuracy (%)", "100"}, summary[6])
	require.Equal(t, []string{"Correct", "0/1"}, summary[7])
	require.Equal(t, []string{"Level", "Excellent"}, summary[9])
}
