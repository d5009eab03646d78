package blueprint

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Selector draws blueprints against the rotation history. Select never
// mutates history; callers Commit only after a successful generation so a
// failed attempt cannot bias future draws.
type Selector struct {
	history *HistoryStore
	logger  *zap.Logger

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

func NewSelector(history *HistoryStore, logger *zap.Logger) *Selector {
	return &Selector{
		history: history,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSelectorWithSeed fixes the random source, for deterministic tests.
func NewSelectorWithSeed(history *HistoryStore, logger *zap.Logger, seed int64) *Selector {
	s := NewSelector(history, logger)
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// Select builds a blueprint for the next generation attempt. The subtopic
// is left empty; the orchestrator fills it from outline retrieval when
// two-stage mode runs.
func (s *Selector) Select(threadID, userMessage string, p *Profile, historyDepth int) Blueprint {
	window := s.history.Window(threadID, historyDepth)

	var bp Blueprint
	bp.Domain = s.selectDomain(userMessage, p, window)

	if p.mode == weightedSelection {
		bp.DifficultyLevel = s.drawLevel(p.Difficulty, window)
		bp.QuestionType = s.selectQuestionType(typesForLevel(p.QuestionTypes, bp.DifficultyLevel), window)
	} else {
		bp.QuestionType = s.selectQuestionType(p.QuestionTypes, window)
		if qt, ok := questionTypeByID(p.QuestionTypes, bp.QuestionType); ok {
			bp.DifficultyLevel = qt.DifficultyLevel
		}
	}

	bp.ReasoningMode = s.selectReasoningMode(threadID, p.ReasoningModes)

	s.logger.Debug("Selected blueprint",
		zap.String("thread_id", threadID),
		zap.String("domain", bp.Domain),
		zap.String("level", bp.DifficultyLevel),
		zap.String("question_type", bp.QuestionType),
		zap.String("reasoning_mode", bp.ReasoningMode))
	return bp
}

// Commit records a blueprint after a successful reply.
func (s *Selector) Commit(threadID string, bp Blueprint, maxDepth int) {
	s.history.Append(threadID, HistoryEntry{Blueprint: bp, Timestamp: time.Now()}, maxDepth)
}

// selectDomain applies the keyword-hint override first: any domain whose
// keywords appear in the message wins outright, bypassing rotation. Without
// a hint, prefer a uniformly random domain unused in the window, else the
// first domain with the minimum window count.
func (s *Selector) selectDomain(userMessage string, p *Profile, window []HistoryEntry) string {
	lower := strings.ToLower(userMessage)

	bestScore := 0
	bestDomain := ""
	for _, d := range p.Domains {
		score := 0
		for _, kw := range d.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestDomain = d.ID
		}
	}
	if bestScore > 0 {
		s.logger.Debug("Domain hint override", zap.String("domain", bestDomain))
		return bestDomain
	}

	counts := make(map[string]int, len(p.Domains))
	for _, e := range window {
		counts[e.Blueprint.Domain]++
	}

	var unused []string
	for _, d := range p.Domains {
		if counts[d.ID] == 0 {
			unused = append(unused, d.ID)
		}
	}
	if len(unused) > 0 {
		return unused[s.intn(len(unused))]
	}

	minDomain := p.Domains[0].ID
	minCount := counts[minDomain]
	for _, d := range p.Domains[1:] {
		if counts[d.ID] < minCount {
			minDomain = d.ID
			minCount = counts[d.ID]
		}
	}
	return minDomain
}

// drawLevel runs the weighted LRU difficulty draw: configured weights
// normalized over enabled levels, biased by 1/(count+1) over the window,
// renormalized, then one weighted random draw.
func (s *Selector) drawLevel(dp *DifficultyProfile, window []HistoryEntry) string {
	weights := dp.normalizedWeights()

	counts := make(map[string]int, len(dp.EnabledLevels))
	for _, e := range window {
		counts[e.Blueprint.DifficultyLevel]++
	}

	final := make([]float64, len(dp.EnabledLevels))
	var sum float64
	for i, lvl := range dp.EnabledLevels {
		bias := 1.0 / float64(counts[lvl]+1)
		final[i] = weights[lvl] * bias
		sum += final[i]
	}

	r := s.float64() * sum
	for i, lvl := range dp.EnabledLevels {
		r -= final[i]
		if r < 0 {
			return lvl
		}
	}
	return dp.EnabledLevels[len(dp.EnabledLevels)-1]
}

// selectQuestionType prefers a uniformly random type absent from the
// window, else the first type with the minimum window count.
func (s *Selector) selectQuestionType(candidates []QuestionType, window []HistoryEntry) string {
	if len(candidates) == 0 {
		return ""
	}

	counts := make(map[string]int, len(candidates))
	for _, e := range window {
		counts[e.Blueprint.QuestionType]++
	}

	var absent []string
	for _, qt := range candidates {
		if counts[qt.ID] == 0 {
			absent = append(absent, qt.ID)
		}
	}
	if len(absent) > 0 {
		return absent[s.intn(len(absent))]
	}

	minType := candidates[0].ID
	minCount := counts[minType]
	for _, qt := range candidates[1:] {
		if counts[qt.ID] < minCount {
			minType = qt.ID
			minCount = counts[qt.ID]
		}
	}
	return minType
}

// selectReasoningMode avoids only the immediately previous committed mode,
// drawing uniformly from the rest. A single-mode profile always repeats.
func (s *Selector) selectReasoningMode(threadID string, modes []ReasoningMode) string {
	if len(modes) == 0 {
		return ""
	}

	prev := ""
	if last, ok := s.history.Last(threadID); ok {
		prev = last.Blueprint.ReasoningMode
	}

	var pool []string
	for _, m := range modes {
		if m.ID != prev {
			pool = append(pool, m.ID)
		}
	}
	if len(pool) == 0 {
		for _, m := range modes {
			pool = append(pool, m.ID)
		}
	}
	return pool[s.intn(len(pool))]
}

func typesForLevel(types []QuestionType, level string) []QuestionType {
	var out []QuestionType
	for _, qt := range types {
		if qt.DifficultyLevel == level {
			out = append(out, qt)
		}
	}
	return out
}

func questionTypeByID(types []QuestionType, id string) (QuestionType, bool) {
	for _, qt := range types {
		if qt.ID == id {
			return qt, true
		}
	}
	return QuestionType{}, false
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Selector) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
