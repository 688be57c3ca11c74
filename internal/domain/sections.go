package domain

import "time"

// SectionID names one of the fixed assessment categories.
type SectionID string

const (
	SectionReading      SectionID = "reading"
	SectionRepeat       SectionID = "repeat"
	SectionJumbled      SectionID = "jumbled"
	SectionQA           SectionID = "qa"
	SectionStorytelling SectionID = "storytelling"
	SectionListening    SectionID = "listening"
)

// Section describes how a practice section is run.
type Section struct {
	ID           SectionID     `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Instructions string        `json:"instructions"`
	Kind         QuestionKind  `json:"kind"`
	SampleSize   int           `json:"questions"`
	TimeBudget   time.Duration `json:"-"`
	Difficulty   string        `json:"difficulty"`
	Skills       []string      `json:"skills"`
}

// TimeBudgetMinutes is the dashboard-facing duration.
func (s Section) TimeBudgetMinutes() int {
	return int(s.TimeBudget / time.Minute)
}

// Catalog returns the section definitions in dashboard order.
func Catalog() []Section {
	return []Section{
		{
			ID:           SectionReading,
			Title:        "Reading Sentences Aloud",
			Description:  "Read 8 sentences clearly with proper pronunciation",
			Instructions: "Click 'Record' and read each sentence aloud clearly. Speak at a natural pace with proper pronunciation.",
			Kind:         KindReadAloud,
			SampleSize:   8,
			TimeBudget:   6 * time.Minute,
			Difficulty:   "Beginner",
			Skills:       []string{"Pronunciation", "Clarity", "Pace"},
		},
		{
			ID:           SectionRepeat,
			Title:        "Repeat Sentences",
			Description:  "Listen carefully and repeat 16 sentences exactly as heard",
			Instructions: "Play each sentence, listen carefully, then record yourself repeating it exactly as you heard it.",
			Kind:         KindRepeat,
			SampleSize:   16,
			TimeBudget:   12 * time.Minute,
			Difficulty:   "Intermediate",
			Skills:       []string{"Listening", "Memory", "Accuracy"},
		},
		{
			ID:           SectionJumbled,
			Title:        "Jumbled Sentences",
			Description:  "Rearrange 10 mixed-up sentences into correct order",
			Instructions: "Select the words in the correct order to form meaningful sentences.",
			Kind:         KindJumbled,
			SampleSize:   10,
			TimeBudget:   8 * time.Minute,
			Difficulty:   "Intermediate",
			Skills:       []string{"Grammar", "Logic", "Structure"},
		},
		{
			ID:           SectionQA,
			Title:        "Question & Answer",
			Description:  "Answer 24 questions with spontaneous spoken responses",
			Instructions: "Listen to each question and provide a clear, detailed answer. Speak naturally and take your time.",
			Kind:         KindOpenResponse,
			SampleSize:   24,
			TimeBudget:   24 * time.Minute,
			Difficulty:   "Advanced",
			Skills:       []string{"Fluency", "Thinking", "Vocabulary"},
		},
		{
			ID:           SectionStorytelling,
			Title:        "Storytelling",
			Description:  "Create coherent stories based on 2 prompts",
			Instructions: "Read the prompt, take a moment to plan, then record a story with a clear beginning, middle and end.",
			Kind:         KindOpenResponse,
			SampleSize:   2,
			TimeBudget:   8 * time.Minute,
			Difficulty:   "Advanced",
			Skills:       []string{"Creativity", "Coherence", "Structure"},
		},
		{
			ID:           SectionListening,
			Title:        "Listening Comprehension",
			Description:  "Answer questions based on audio passages",
			Instructions: "Play the passage, listen carefully, then choose the best answer.",
			Kind:         KindListening,
			SampleSize:   2,
			TimeBudget:   10 * time.Minute,
			Difficulty:   "Intermediate",
			Skills:       []string{"Comprehension", "Detail", "Inference"},
		},
	}
}

// LookupSection finds a section by identifier.
func LookupSection(id SectionID) (Section, bool) {
	for _, s := range Catalog() {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
