package scoring

import "speak-assessment-service/internal/domain"

// PerformanceLevel buckets a percentage score.
type PerformanceLevel string

const (
	LevelExcellent        PerformanceLevel = "Excellent"
	LevelGood             PerformanceLevel = "Good"
	LevelNeedsImprovement PerformanceLevel = "Needs Improvement"
)

// Level maps a score in [0,100] to its performance band.
func Level(score int) PerformanceLevel {
	switch {
	case score >= 85:
		return LevelExcellent
	case score >= 70:
		return LevelGood
	default:
		return LevelNeedsImprovement
	}
}

// Summary aggregates the answer records of a completed session.
type Summary struct {
	Answered        int              `json:"answered"`
	Scored          int              `json:"scored"`
	AverageAccuracy *int             `json:"averageAccuracy,omitempty"`
	Graded          int              `json:"graded"`
	Correct         int              `json:"correct"`
	Overall         *int             `json:"overall,omitempty"`
	Level           PerformanceLevel `json:"level,omitempty"`
}

// Summarize averages accuracy over records that carry one and counts correctness over
// records that carry it. Overall is the average accuracy, or the percentage correct when
// nothing was scored for accuracy; it stays nil for open responses only.
func Summarize(records []domain.AnswerRecord) Summary {
	s := Summary{Answered: len(records)}
	total := 0
	for _, r := range records {
		if r.AccuracyPercent != nil {
			s.Scored++
			total += *r.AccuracyPercent
		}
		if r.IsCorrect != nil {
			s.Graded++
			if *r.IsCorrect {
				s.Correct++
			}
		}
	}

	switch {
	case s.Scored > 0:
		avg := roundHalfUp(total, s.Scored)
		s.AverageAccuracy = &avg
		s.Overall = &avg
	case s.Graded > 0:
		pct := roundHalfUp(s.Correct*100, s.Graded)
		s.Overall = &pct
	}
	if s.Overall != nil {
		s.Level = Level(*s.Overall)
	}
	return s
}

func roundHalfUp(num, den int) int {
	return (num*2 + den) / (2 * den)
}
