package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"speak-assessment-service/internal/domain"
	"speak-assessment-service/internal/scoring"
)

const (
	// DefaultLocale is passed to the transcriber when none is configured.
	DefaultLocale = "en-US"

	repeatSpeechRate    = 0.9
	listeningSpeechRate = 1.0
)

// Controller runs one assessment session over a fixed question set. All methods are
// safe for concurrent use; collaborators are always called without the lock held.
type Controller struct {
	id      string
	set     domain.QuestionSet
	devices Devices
	locale  string
	now     func() time.Time
	logger  *slog.Logger

	mu        sync.RWMutex
	state     domain.State
	index     int
	remaining int

	// generation changes whenever a recording ends or the question changes, so late
	// transcriber events and pending acquisitions can tell they are stale.
	generation uint64
	// visit changes on every question transition; it scopes prompt playback.
	visit uint64

	acquiring bool
	stopping  bool
	capture   CaptureHandle

	liveTranscript string
	lastFinal      string
	answer         string
	selection      []string
	option         *int
	accuracy       *int
	correct        *bool
	hasAnswered    bool
	playing        bool

	records     map[int]domain.AnswerRecord
	completion  *domain.Completion
	done        chan struct{}
	subscribers map[chan domain.Snapshot]struct{}
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClock replaces time.Now, mostly for deterministic record timestamps in tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLocale sets the recognition locale.
func WithLocale(locale string) ControllerOption {
	return func(c *Controller) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// WithLogger sets the logger for collaborator failures.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a session positioned on the first question.
func NewController(id string, set domain.QuestionSet, devices Devices, opts ...ControllerOption) (*Controller, error) {
	if len(set.Questions) == 0 {
		return nil, fmt.Errorf("%w: section %s has no questions", domain.ErrInvalidPool, set.Section)
	}
	c := &Controller{
		id:          id,
		set:         set,
		devices:     devices,
		locale:      DefaultLocale,
		now:         time.Now,
		logger:      slog.Default(),
		state:       domain.StateAwaitingStart,
		remaining:   set.TimeBudgetSeconds(),
		records:     make(map[int]domain.AnswerRecord, len(set.Questions)),
		done:        make(chan struct{}),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", id, "section", string(set.Section))
	return c, nil
}

// ID identifies the session.
func (c *Controller) ID() string {
	return c.id
}

// QuestionSet returns the immutable content of the session.
func (c *Controller) QuestionSet() domain.QuestionSet {
	return c.set
}

// Done is closed once the session completes or is abandoned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Completion returns the final payload, or nil before the session completes.
func (c *Controller) Completion() *domain.Completion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completion
}

// Start acquires the microphone and begins live transcription for the current question.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateAwaitingStart || c.acquiring {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start in %s", domain.ErrInvalidTransition, state)
	}
	q := c.currentLocked()
	if !q.Kind.Recorded() {
		c.mu.Unlock()
		return fmt.Errorf("%w: start on %s", domain.ErrUnsupportedAction, q.Kind)
	}
	c.acquiring = true
	gen := c.generation
	c.mu.Unlock()

	handle, err := c.devices.Capture.Acquire(ctx)
	if err != nil {
		c.mu.Lock()
		c.acquiring = false
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	}

	c.mu.Lock()
	c.acquiring = false
	if c.generation != gen || c.state != domain.StateAwaitingStart {
		// the question changed or the session ended while waiting for consent
		c.mu.Unlock()
		c.release(handle, false)
		return fmt.Errorf("%w: session moved on during microphone request", domain.ErrInvalidTransition)
	}
	c.state = domain.StateRecording
	c.capture = handle
	c.liveTranscript = ""
	c.lastFinal = ""
	c.mu.Unlock()

	if err := c.devices.Transcriber.Start(ctx, c.locale, c.transcriptSink(gen)); err != nil {
		c.mu.Lock()
		owned := c.generation == gen && c.state == domain.StateRecording && c.capture == handle
		if owned {
			c.state = domain.StateAwaitingStart
			c.capture = nil
			c.generation++
		}
		c.mu.Unlock()
		if owned {
			c.release(handle, false)
		}
		c.publish()
		return fmt.Errorf("%w: transcription unavailable: %w", domain.ErrPermissionDenied, err)
	}

	c.publish()
	return nil
}

// Stop ends the recording, releases the microphone and scores the transcript when the
// question has reference text. The transcript is the last final result received.
func (c *Controller) Stop(_ context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateRecording || c.stopping {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: stop in %s", domain.ErrInvalidTransition, state)
	}
	c.stopping = true
	gen := c.generation
	handle := c.capture
	c.capture = nil
	c.mu.Unlock()

	c.release(handle, true)

	c.mu.Lock()
	c.stopping = false
	if c.generation != gen || c.state != domain.StateRecording {
		c.mu.Unlock()
		return fmt.Errorf("%w: recording interrupted", domain.ErrInvalidTransition)
	}
	c.generation++
	c.answer = c.lastFinal
	c.liveTranscript = c.lastFinal
	c.hasAnswered = true
	c.state = domain.StateRecorded
	if q := c.currentLocked(); q.Kind.Scored() {
		acc := scoring.Accuracy(q.ReferenceText(), c.answer)
		c.accuracy = &acc
	}
	c.broadcastLocked()
	c.mu.Unlock()
	return nil
}

func (c *Controller) transcriptSink(gen uint64) func(TranscriptEvent) {
	return func(ev TranscriptEvent) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen || c.state != domain.StateRecording {
			return
		}
		c.liveTranscript = ev.Text
		if ev.Final {
			c.lastFinal = ev.Text
		}
		c.broadcastLocked()
	}
}

// SelectWord appends an offered word to the jumbled arrangement. Selecting a word that
// is already placed does nothing.
func (c *Controller) SelectWord(word string) error {
	return c.editSelection(func(q domain.Question) error {
		for _, w := range c.selection {
			if w == word {
				return nil
			}
		}
		for _, w := range q.Words {
			if w == word {
				c.selection = append(c.selection, word)
				return nil
			}
		}
		return fmt.Errorf("%w: %q", domain.ErrWordNotAvailable, word)
	})
}

// DeselectWord removes the word at position index of the arrangement.
func (c *Controller) DeselectWord(index int) error {
	return c.editSelection(func(domain.Question) error {
		if index < 0 || index >= len(c.selection) {
			return fmt.Errorf("%w: %d of %d", domain.ErrSelectionIndex, index, len(c.selection))
		}
		c.selection = append(c.selection[:index:index], c.selection[index+1:]...)
		return nil
	})
}

// ResetSelection empties the arrangement.
func (c *Controller) ResetSelection() error {
	return c.editSelection(func(domain.Question) error {
		c.selection = nil
		return nil
	})
}

// editSelection applies fn to a jumbled question. Changing a submitted arrangement
// withdraws the answer until it is submitted again.
func (c *Controller) editSelection(fn func(domain.Question) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.answerableLocked(domain.KindJumbled)
	if err != nil {
		return err
	}
	before := strings.Join(c.selection, " ")
	if err := fn(q); err != nil {
		return err
	}
	if c.state == domain.StateRecorded && strings.Join(c.selection, " ") != before {
		c.state = domain.StateAwaitingStart
		c.hasAnswered = false
		c.answer = ""
		c.correct = nil
	}
	c.broadcastLocked()
	return nil
}

// Submit answers a jumbled question with the current arrangement.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.answerableLocked(domain.KindJumbled)
	if err != nil {
		return err
	}
	if len(c.selection) == 0 {
		return domain.ErrEmptySelection
	}
	c.answer = strings.Join(c.selection, " ")
	ok := strings.ToLower(c.answer) == strings.ToLower(strings.TrimSpace(q.CorrectSentence))
	c.correct = &ok
	c.hasAnswered = true
	c.state = domain.StateRecorded
	c.broadcastLocked()
	return nil
}

// SelectOption answers a listening question. Choosing again replaces the answer.
func (c *Controller) SelectOption(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.answerableLocked(domain.KindListening)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(q.Options) {
		return fmt.Errorf("%w: %d of %d", domain.ErrOptionOutOfRange, index, len(q.Options))
	}
	ok := index == q.CorrectOptionIndex
	c.option = &index
	c.correct = &ok
	c.answer = q.Options[index]
	c.hasAnswered = true
	c.state = domain.StateRecorded
	c.broadcastLocked()
	return nil
}

func (c *Controller) answerableLocked(kind domain.QuestionKind) (domain.Question, error) {
	if c.state != domain.StateAwaitingStart && c.state != domain.StateRecorded {
		return domain.Question{}, fmt.Errorf("%w: answer in %s", domain.ErrInvalidTransition, c.state)
	}
	q := c.currentLocked()
	if q.Kind != kind {
		return domain.Question{}, fmt.Errorf("%w: %s answer on %s", domain.ErrUnsupportedAction, kind, q.Kind)
	}
	return q, nil
}

// PlayPrompt speaks the sentence of a repeat question or the passage of a listening
// question. Only one utterance plays at a time.
func (c *Controller) PlayPrompt(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Terminal() || c.state == domain.StateRecording {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: play in %s", domain.ErrInvalidTransition, state)
	}
	q := c.currentLocked()
	text := q.SpokenPrompt()
	if text == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: play on %s", domain.ErrUnsupportedAction, q.Kind)
	}
	if c.playing {
		c.mu.Unlock()
		return domain.ErrAlreadyPlaying
	}
	c.playing = true
	visit := c.visit
	c.broadcastLocked()
	c.mu.Unlock()

	rate := listeningSpeechRate
	if q.Kind == domain.KindRepeat {
		rate = repeatSpeechRate
	}
	err := c.devices.Synthesizer.Speak(ctx, text, rate, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.visit == visit && c.playing {
			c.playing = false
			c.broadcastLocked()
		}
	})
	if err != nil {
		c.mu.Lock()
		if c.visit == visit {
			c.playing = false
			c.broadcastLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("speak prompt: %w", err)
	}
	return nil
}

// Advance records the current answer and moves to the next question. Past the last
// question the session completes and the returned completion is non-nil.
func (c *Controller) Advance() (*domain.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateRecorded {
		return nil, fmt.Errorf("%w: advance in %s", domain.ErrInvalidTransition, c.state)
	}

	// keyed by index so revisiting a question overwrites its record
	c.records[c.index] = c.recordLocked()

	if c.index == len(c.set.Questions)-1 {
		c.state = domain.StateComplete
		c.generation++
		c.visit++
		c.playing = false
		c.completion = c.completionLocked()
		close(c.done)
		c.broadcastLocked()
		return c.completion, nil
	}

	c.moveLocked(c.index + 1)
	c.broadcastLocked()
	return nil, nil
}

// Retreat moves back one question, abandoning any recording in progress. Records of
// answered questions are kept.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	if c.state.Terminal() || c.index == 0 {
		state, index := c.state, c.index
		c.mu.Unlock()
		return fmt.Errorf("%w: retreat from question %d in %s", domain.ErrInvalidTransition, index, state)
	}
	handle, stopTranscriber := c.detachLocked()
	c.moveLocked(c.index - 1)
	c.broadcastLocked()
	c.mu.Unlock()

	c.release(handle, stopTranscriber)
	return nil
}

// Tick counts the session clock down by one second and returns the seconds left. The
// clock stops at zero; running out of time does not submit or advance anything.
func (c *Controller) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return c.remaining
	}
	if c.remaining > 0 {
		c.remaining--
		c.broadcastLocked()
	}
	return c.remaining
}

// Abandon ends the session early and releases the microphone. It is idempotent.
func (c *Controller) Abandon() {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	handle, stopTranscriber := c.detachLocked()
	c.state = domain.StateAbandoned
	c.generation++
	c.visit++
	c.playing = false
	close(c.done)
	c.broadcastLocked()
	c.mu.Unlock()

	c.release(handle, stopTranscriber)
}

// detachLocked takes ownership of the active capture, if any, so it can be released
// once the lock is dropped. The transcriber needs stopping unless Stop already is.
func (c *Controller) detachLocked() (CaptureHandle, bool) {
	handle := c.capture
	c.capture = nil
	return handle, c.state == domain.StateRecording && !c.stopping
}

func (c *Controller) release(handle CaptureHandle, stopTranscriber bool) {
	if stopTranscriber {
		if err := c.devices.Transcriber.Stop(); err != nil {
			c.logger.Warn("stop transcriber", "err", err)
		}
	}
	if handle != nil {
		if _, err := handle.Stop(); err != nil {
			c.logger.Warn("release microphone", "err", err)
		}
	}
}

func (c *Controller) moveLocked(index int) {
	c.index = index
	c.state = domain.StateAwaitingStart
	c.generation++
	c.visit++
	c.liveTranscript = ""
	c.lastFinal = ""
	c.answer = ""
	c.selection = nil
	c.option = nil
	c.accuracy = nil
	c.correct = nil
	c.hasAnswered = false
	c.playing = false
}

func (c *Controller) currentLocked() domain.Question {
	return c.set.Questions[c.index]
}

func (c *Controller) recordLocked() domain.AnswerRecord {
	q := c.currentLocked()
	rec := domain.AnswerRecord{
		QuestionIndex: c.index,
		Kind:          q.Kind,
		Timestamp:     c.now().UTC(),
	}
	switch q.Kind {
	case domain.KindReadAloud, domain.KindRepeat:
		ref := q.ReferenceText()
		rec.RawTranscript = c.answer
		rec.ReferenceText = &ref
		rec.AccuracyPercent = copyInt(c.accuracy)
	case domain.KindOpenResponse:
		rec.RawTranscript = c.answer
	case domain.KindJumbled:
		answer := c.answer
		rec.UserAnswerText = &answer
		rec.IsCorrect = copyBool(c.correct)
	case domain.KindListening:
		answer := c.answer
		rec.UserAnswerText = &answer
		rec.SelectedOptionIndex = copyInt(c.option)
		rec.IsCorrect = copyBool(c.correct)
	}
	return rec
}

func (c *Controller) completionLocked() *domain.Completion {
	records := make([]domain.AnswerRecord, 0, len(c.records))
	for i := range c.set.Questions {
		if rec, ok := c.records[i]; ok {
			records = append(records, rec)
		}
	}
	return &domain.Completion{
		SessionID:      c.id,
		Section:        c.set.Section,
		AnswerRecords:  records,
		TotalQuestions: len(c.set.Questions),
		ElapsedSeconds: c.set.TimeBudgetSeconds() - c.remaining,
		CompletedAt:    c.now().UTC(),
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.Snapshot {
	total := len(c.set.Questions)
	q := c.currentLocked()
	snap := domain.Snapshot{
		SessionID:            c.id,
		Section:              c.set.Section,
		State:                c.state,
		CurrentIndex:         c.index,
		TotalQuestions:       total,
		IsRecording:          c.state == domain.StateRecording,
		HasAnswered:          c.hasAnswered,
		IsPlaying:            c.playing,
		TimeRemainingSeconds: c.remaining,
		TimeUp:               c.remaining == 0,
		LiveTranscript:       c.liveTranscript,
		JumbledSelection:     append([]string{}, c.selection...),
		SelectedOptionIndex:  copyInt(c.option),
		AccuracyPercent:      copyInt(c.accuracy),
		IsCorrect:            copyBool(c.correct),
		AnsweredCount:        len(c.records),
		ProgressPercent:      ((c.index+1)*200 + total) / (2 * total),
	}
	if q.Kind == domain.KindJumbled {
		snap.AvailableWords = make([]string, 0, len(q.Words))
		for _, w := range q.Words {
			if !contains(c.selection, w) {
				snap.AvailableWords = append(snap.AvailableWords, w)
			}
		}
	}
	return snap
}

// Subscribe returns a channel that receives a snapshot after every change, starting with
// the current one. Only the latest snapshot is kept for slow readers. The caller must
// invoke cancel to avoid leaks.
func (c *Controller) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *Controller) broadcastLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func contains(words []string, word string) bool {
	for _, w := range words {
		if w == word {
			return true
		}
	}
	return false
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
