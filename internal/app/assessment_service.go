package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"speak-assessment-service/internal/domain"

	"github.com/google/uuid"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Controller)
	Get(sessionID string) (*Controller, bool)
	Delete(sessionID string)
}

// ResultRepository holds completed sessions for the results view for a limited time.
type ResultRepository interface {
	SaveResult(ctx context.Context, completion domain.Completion) error
	GetResult(ctx context.Context, sessionID string) (domain.Completion, error)
}

// QuestionSource draws the question set of a section.
type QuestionSource interface {
	QuestionSet(ctx context.Context, section domain.SectionID) (domain.QuestionSet, error)
}

// AssessmentService owns session lifecycles: creation, the countdown, completion
// handoff and abandonment.
type AssessmentService struct {
	sessions  SessionRepository
	results   ResultRepository
	questions QuestionSource
	logger    *slog.Logger
	locale    string
	tick      time.Duration
	now       func() time.Time
	newID     func() string
}

// ServiceOption customizes an AssessmentService.
type ServiceOption func(*AssessmentService)

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *AssessmentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecognitionLocale sets the locale sessions pass to the transcriber.
func WithRecognitionLocale(locale string) ServiceOption {
	return func(s *AssessmentService) {
		if locale != "" {
			s.locale = locale
		}
	}
}

// WithTickInterval sets how often the countdown advances by one second. Tests shorten it.
func WithTickInterval(d time.Duration) ServiceOption {
	return func(s *AssessmentService) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithServiceClock replaces time.Now for sessions created by the service.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *AssessmentService) {
		s.now = now
	}
}

// WithIDGenerator replaces the UUID session id generator.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *AssessmentService) {
		s.newID = newID
	}
}

func NewAssessmentService(sessions SessionRepository, results ResultRepository, questions QuestionSource, opts ...ServiceOption) *AssessmentService {
	s := &AssessmentService{
		sessions:  sessions,
		results:   results,
		questions: questions,
		logger:    slog.Default(),
		locale:    DefaultLocale,
		tick:      time.Second,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession draws a question set for the section and starts its countdown. Unknown
// sections and undersized pools fail before any session exists.
func (s *AssessmentService) StartSession(ctx context.Context, section domain.SectionID, devices Devices) (*Controller, error) {
	set, err := s.questions.QuestionSet(ctx, section)
	if err != nil {
		return nil, err
	}

	session, err := NewController(s.newID(), set, devices,
		WithClock(s.now),
		WithLocale(s.locale),
		WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	go s.runCountdown(session)

	s.logger.Info("session started",
		"session_id", session.ID(),
		"section", string(section),
		"questions", len(set.Questions),
		"time_budget_s", set.TimeBudgetSeconds(),
	)
	return session, nil
}

// Session returns a live session.
func (s *AssessmentService) Session(sessionID string) (*Controller, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Advance moves a session forward. When it completes, the payload is stored for the
// results view and the session is dropped.
func (s *AssessmentService) Advance(ctx context.Context, sessionID string) (*domain.Completion, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	completion, err := session.Advance()
	if err != nil || completion == nil {
		return nil, err
	}

	s.sessions.Delete(sessionID)
	if err := s.results.SaveResult(ctx, *completion); err != nil {
		// the caller still receives the payload directly
		s.logger.Error("save result", "session_id", sessionID, "err", err)
	}
	s.logger.Info("session complete",
		"session_id", sessionID,
		"section", string(completion.Section),
		"answers", len(completion.AnswerRecords),
		"elapsed_s", completion.ElapsedSeconds,
	)
	return completion, nil
}

// Abandon ends a session early, releasing its devices and countdown.
func (s *AssessmentService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Abandon()
	s.sessions.Delete(sessionID)
	s.logger.Info("session abandoned", "session_id", sessionID)
}

// Result returns a completed session's payload while it is retained.
func (s *AssessmentService) Result(ctx context.Context, sessionID string) (domain.Completion, error) {
	completion, err := s.results.GetResult(ctx, sessionID)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("result %s: %w", sessionID, err)
	}
	return completion, nil
}

func (s *AssessmentService) runCountdown(session *Controller) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			if session.Tick() == 0 {
				s.logger.Info("session time is up", "session_id", session.ID())
				return
			}
		}
	}
}
