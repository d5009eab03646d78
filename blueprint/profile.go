package blueprint

import (
	"encoding/json"
	"fmt"
	"os"

	kberrors "kbreply/errors"
)

// selectionMode is decided once when a profile loads, never inferred per call.
type selectionMode int

const (
	// legacySelection rotates over all question types with a flat LRU,
	// ignoring difficulty levels. Used by profiles without a difficulty
	// profile.
	legacySelection selectionMode = iota
	// weightedSelection draws a difficulty level with a weighted LRU bias
	// first, then rotates among that level's question types.
	weightedSelection
)

// Profile configures blueprint selection for one agent persona.
type Profile struct {
	ID                string             `json:"id"`
	Domains           []Domain           `json:"domains"`
	QuestionTypes     []QuestionType     `json:"question_types"`
	ReasoningModes    []ReasoningMode    `json:"reasoning_modes"`
	Difficulty        *DifficultyProfile `json:"difficulty,omitempty"`
	TwoStageRetrieval bool               `json:"two_stage_retrieval"`

	mode selectionMode
}

// Mode reports whether this profile uses the weighted difficulty draw.
func (p *Profile) Weighted() bool { return p.mode == weightedSelection }

// LoadProfiles reads the profile file and validates every profile.
// Validation failures are configuration errors; callers fail fast at
// bootstrap rather than discovering a bad profile mid-request.
func LoadProfiles(path string) (map[string]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kberrors.WrapErrorf(err, "read profile file %s", path)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses and validates profile JSON.
func ParseProfiles(data []byte) (map[string]*Profile, error) {
	var profiles []*Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, kberrors.WrapError(err, "parse profiles")
	}

	byID := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.ID, err)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q: %w", p.ID, kberrors.ErrInvalidConfig)
		}
		byID[p.ID] = p
	}
	return byID, nil
}

func (p *Profile) validate() error {
	if p.ID == "" {
		return fmt.Errorf("missing profile id: %w", kberrors.ErrInvalidConfig)
	}
	if len(p.Domains) == 0 {
		return fmt.Errorf("no domains configured: %w", kberrors.ErrInvalidConfig)
	}
	if len(p.QuestionTypes) == 0 {
		return fmt.Errorf("no question types configured: %w", kberrors.ErrInvalidConfig)
	}
	if len(p.ReasoningModes) == 0 {
		return fmt.Errorf("no reasoning modes configured: %w", kberrors.ErrInvalidConfig)
	}

	if p.Difficulty == nil {
		p.mode = legacySelection
		return nil
	}
	p.mode = weightedSelection

	dp := p.Difficulty
	if len(dp.EnabledLevels) == 0 {
		return fmt.Errorf("difficulty profile has no enabled levels: %w", kberrors.ErrInvalidConfig)
	}
	enabled := make(map[string]bool, len(dp.EnabledLevels))
	for _, lvl := range dp.EnabledLevels {
		enabled[lvl] = true
	}
	for lvl, w := range dp.Weights {
		if w < 0 {
			return fmt.Errorf("negative weight %f for level %q: %w", w, lvl, kberrors.ErrInvalidConfig)
		}
	}
	// Every enabled level needs at least one question type, or the stage-2
	// draw could strand a generation with nothing to pick.
	for _, lvl := range dp.EnabledLevels {
		found := false
		for _, qt := range p.QuestionTypes {
			if qt.DifficultyLevel == lvl {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("enabled level %q has no question types: %w", lvl, kberrors.ErrInvalidConfig)
		}
	}
	return nil
}

// normalizedWeights returns weights over enabled levels scaled to sum 1.0,
// falling back to an equal split when every configured weight is zero.
func (dp *DifficultyProfile) normalizedWeights() map[string]float64 {
	out := make(map[string]float64, len(dp.EnabledLevels))
	var sum float64
	for _, lvl := range dp.EnabledLevels {
		sum += dp.Weights[lvl]
	}
	if sum <= 0 {
		equal := 1.0 / float64(len(dp.EnabledLevels))
		for _, lvl := range dp.EnabledLevels {
			out[lvl] = equal
		}
		return out
	}
	for _, lvl := range dp.EnabledLevels {
		out[lvl] = dp.Weights[lvl] / sum
	}
	return out
}

// DisplayName returns the human-readable name for a level id.
func (dp *DifficultyProfile) DisplayName(level string) string {
	if dp == nil {
		return level
	}
	if name, ok := dp.DisplayNames[level]; ok {
		return name
	}
	return level
}
