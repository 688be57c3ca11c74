package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"speak-assessment-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestResultStoreRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewResultStore(newClient(mr), 30*time.Minute)
	ctx := context.Background()

	accuracy := 75
	reference := "the quick brown fox"
	completion := domain.Completion{
		SessionID:      "s1",
		Section:        domain.SectionReading,
		TotalQuestions: 1,
		ElapsedSeconds: 12,
		AnswerRecords: []domain.AnswerRecord{{
			QuestionIndex:   0,
			Kind:            domain.KindReadAloud,
			RawTranscript:   "the slow brown fox",
			ReferenceText:   &reference,
			AccuracyPercent: &accuracy,
		}},
	}
	if err := store.SaveResult(ctx, completion); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetResult(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rec := got.AnswerRecords[0]
	if rec.AccuracyPercent == nil || *rec.AccuracyPercent != 75 || rec.IsCorrect != nil {
		t.Fatalf("record fields not preserved: %+v", rec)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.GetResult(ctx, "s1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected expired result, got %v", err)
	}
}
