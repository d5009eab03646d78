// Package blueprint chooses the structural shape of the next generated
// item: question type, difficulty, domain, and reasoning mode, rotated to
// avoid recent repeats. A blueprint is built fresh per generation attempt
// and enters the rotation history only when the caller commits it after a
// successful reply.
package blueprint

import "time"

// Blueprint is the structural recipe for one generation attempt.
type Blueprint struct {
	QuestionType    string
	DifficultyLevel string
	Domain          string
	ReasoningMode   string
	Subtopic        string
}

// HistoryEntry is a committed blueprint with its commit time.
type HistoryEntry struct {
	Blueprint Blueprint
	Timestamp time.Time
}

// Domain is one subject area with the keywords that hint at it.
type Domain struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// QuestionType is one question shape, optionally tagged with a difficulty level.
type QuestionType struct {
	ID              string `json:"id"`
	Phrase          string `json:"phrase"`
	Guidance        string `json:"guidance"`
	DifficultyLevel string `json:"difficulty_level"`
}

// ReasoningMode is one reasoning style the generated item should exercise.
type ReasoningMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DifficultyProfile configures the weighted difficulty draw. Weights are
// normalized over EnabledLevels at load time.
type DifficultyProfile struct {
	EnabledLevels []string           `json:"enabled_levels"`
	Weights       map[string]float64 `json:"weights"`
	DisplayNames  map[string]string  `json:"display_names"`
}
