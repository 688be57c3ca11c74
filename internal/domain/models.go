package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QuestionKind tags the variant carried by a Question.
type QuestionKind string

const (
	KindReadAloud    QuestionKind = "read_aloud"
	KindRepeat       QuestionKind = "repeat"
	KindJumbled      QuestionKind = "jumbled"
	KindOpenResponse QuestionKind = "open_response"
	KindListening    QuestionKind = "listening"
)

// Recorded reports whether answering the question goes through the microphone.
func (k QuestionKind) Recorded() bool {
	switch k {
	case KindReadAloud, KindRepeat, KindOpenResponse:
		return true
	}
	return false
}

// Scored reports whether a recorded answer is compared against reference text.
func (k QuestionKind) Scored() bool {
	return k == KindReadAloud || k == KindRepeat
}

// Question is a tagged variant. Only the fields of its Kind are meaningful:
//
//	read_aloud, repeat: Text
//	jumbled:            Words, CorrectSentence
//	open_response:      Prompt
//	listening:          Transcript, Prompt, Options, CorrectOptionIndex
type Question struct {
	Kind               QuestionKind `json:"kind" yaml:"kind" validate:"required,oneof=read_aloud repeat jumbled open_response listening"`
	Text               string       `json:"text,omitempty" yaml:"text,omitempty" validate:"required_if=Kind read_aloud,required_if=Kind repeat"`
	Words              []string     `json:"words,omitempty" yaml:"words,omitempty" validate:"required_if=Kind jumbled,dive,required"`
	CorrectSentence    string       `json:"correctSentence,omitempty" yaml:"correct_sentence,omitempty" validate:"required_if=Kind jumbled"`
	Prompt             string       `json:"prompt,omitempty" yaml:"prompt,omitempty" validate:"required_if=Kind open_response,required_if=Kind listening"`
	Transcript         string       `json:"transcript,omitempty" yaml:"transcript,omitempty" validate:"required_if=Kind listening"`
	Options            []string     `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectOptionIndex int          `json:"correctOptionIndex,omitempty" yaml:"correct_option_index,omitempty" validate:"gte=0"`
}

// ReferenceText is the text a spoken answer is scored against, empty when unscored.
func (q Question) ReferenceText() string {
	if q.Kind.Scored() {
		return q.Text
	}
	return ""
}

// SpokenPrompt is the text played through speech synthesis for the question.
func (q Question) SpokenPrompt() string {
	switch q.Kind {
	case KindRepeat:
		return q.Text
	case KindListening:
		return q.Transcript
	}
	return ""
}

// Validate checks the per-kind invariants struct tags cannot express.
func (q Question) Validate() error {
	switch q.Kind {
	case KindJumbled:
		if !isPermutation(q.Words, strings.Fields(q.CorrectSentence)) {
			return fmt.Errorf("%w: jumbled words %q are not a permutation of %q", ErrInvalidPool, q.Words, q.CorrectSentence)
		}
		// a placed word cannot be selected again, so a repeated word is unplaceable
		if w, ok := repeatedWord(q.Words); ok {
			return fmt.Errorf("%w: jumbled word %q appears more than once", ErrInvalidPool, w)
		}
	case KindListening:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: listening question needs at least 2 options, has %d", ErrInvalidPool, len(q.Options))
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return fmt.Errorf("%w: correct option %d outside [0,%d)", ErrInvalidPool, q.CorrectOptionIndex, len(q.Options))
		}
	}
	return nil
}

func isPermutation(words, tokens []string) bool {
	if len(words) != len(tokens) {
		return false
	}
	a := make([]string, len(words))
	b := make([]string, len(tokens))
	for i := range words {
		a[i] = strings.ToLower(words[i])
		b[i] = strings.ToLower(tokens[i])
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func repeatedWord(words []string) (string, bool) {
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		key := strings.ToLower(w)
		if seen[key] {
			return w, true
		}
		seen[key] = true
	}
	return "", false
}

// QuestionPool is the candidate set a section samples from.
type QuestionPool struct {
	Section   SectionID  `json:"section" yaml:"section" validate:"required"`
	Questions []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// QuestionSet is the immutable, sampled content of one session.
type QuestionSet struct {
	Section      SectionID     `json:"section"`
	Title        string        `json:"title"`
	Instructions string        `json:"instructions"`
	TimeBudget   time.Duration `json:"-"`
	Questions    []Question    `json:"questions"`
}

// TimeBudgetSeconds is the countdown length for the set.
func (s QuestionSet) TimeBudgetSeconds() int {
	return int(s.TimeBudget / time.Second)
}

// AnswerRecord is the outcome of one answered question. Pointer fields are nil when
// they do not apply to the question kind.
type AnswerRecord struct {
	QuestionIndex       int          `json:"questionIndex"`
	Kind                QuestionKind `json:"kind"`
	Timestamp           time.Time    `json:"timestamp"`
	RawTranscript       string       `json:"rawTranscript"`
	ReferenceText       *string      `json:"referenceText,omitempty"`
	AccuracyPercent     *int         `json:"accuracyPercent,omitempty"`
	UserAnswerText      *string      `json:"userAnswerText,omitempty"`
	IsCorrect           *bool        `json:"isCorrect,omitempty"`
	SelectedOptionIndex *int         `json:"selectedOptionIndex,omitempty"`
}

// Completion is the payload handed to the results view when a session completes.
type Completion struct {
	SessionID      string         `json:"sessionId"`
	Section        SectionID      `json:"section"`
	AnswerRecords  []AnswerRecord `json:"answerRecords"`
	TotalQuestions int            `json:"totalQuestions"`
	ElapsedSeconds int            `json:"elapsedSeconds"`
	CompletedAt    time.Time      `json:"completedAt"`
}

// State is the controller's position in the per-question state machine.
type State string

const (
	StateAwaitingStart State = "awaiting_start"
	StateRecording     State = "recording"
	StateRecorded      State = "recorded"
	StateComplete      State = "complete"
	StateAbandoned     State = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAbandoned
}

// Snapshot is a read-only view of a session for the presentation layer.
type Snapshot struct {
	SessionID            string    `json:"sessionId"`
	Section              SectionID `json:"section"`
	State                State     `json:"state"`
	CurrentIndex         int       `json:"currentIndex"`
	TotalQuestions       int       `json:"totalQuestions"`
	IsRecording          bool      `json:"isRecording"`
	HasAnswered          bool      `json:"hasAnswered"`
	IsPlaying            bool      `json:"isPlaying"`
	TimeRemainingSeconds int       `json:"timeRemainingSeconds"`
	TimeUp               bool      `json:"timeUp"`
	LiveTranscript       string    `json:"liveTranscript"`
	JumbledSelection     []string  `json:"jumbledSelection"`
	AvailableWords       []string  `json:"availableWords,omitempty"`
	SelectedOptionIndex  *int      `json:"selectedOptionIndex,omitempty"`
	AccuracyPercent      *int      `json:"accuracyPercent,omitempty"`
	IsCorrect            *bool     `json:"isCorrect,omitempty"`
	AnsweredCount        int       `json:"answeredCount"`
	ProgressPercent      int       `json:"progressPercent"`
}
