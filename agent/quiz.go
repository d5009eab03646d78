package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kbreply/prompts"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuizQuestion is one generated multiple-choice question.
type QuizQuestion struct {
	QuestionID    string            `json:"question_id"`
	QuestionText  string            `json:"question_text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

type rawQuizQuestion struct {
	Question    string            `json:"question"`
	Options     map[string]string `json:"options"`
	Correct     string            `json:"correct"`
	Explanation string            `json:"explanation"`
}

// GenerateQuiz produces count questions grounded in the persona's knowledge
// bases. The draft skips post-processing so the JSON comes back raw; on a
// malformed response a single fallback question is returned instead of an
// error so the caller always gets a renderable quiz.
func (a *ReplyAgent) GenerateQuiz(ctx context.Context, p *Persona, count int) ([]QuizQuestion, error) {
	if count <= 0 {
		count = 5
	}

	instruction := fmt.Sprintf(prompts.QuizInstruction(), count)
	chunks := a.retriever.Retrieve(ctx, instruction, p.KBs, p.Retrieval)
	prompt := BuildPrompt(p, "", chunks, nil, instruction, "")

	response, err := a.generate(ctx, p, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSONArray(response)
	if err != nil {
		a.logger.Warn("Quiz response was not valid JSON, returning fallback",
			zap.Error(err),
			zap.String("response_head", head(response, 200)))
		return []QuizQuestion{fallbackQuestion()}, nil
	}

	questions := make([]QuizQuestion, 0, len(raw))
	for _, q := range raw {
		questions = append(questions, QuizQuestion{
			QuestionID:    uuid.New().String(),
			QuestionText:  q.Question,
			Options:       q.Options,
			CorrectAnswer: q.Correct,
			Explanation:   q.Explanation,
		})
	}
	return questions, nil
}

// extractJSONArray pulls the outermost JSON array out of a response that
// may wrap it in prose or a markdown code fence.
func extractJSONArray(response string) ([]rawQuizQuestion, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []rawQuizQuestion
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse quiz JSON: %w", err)
	}
	return raw, nil
}

func fallbackQuestion() QuizQuestion {
	return QuizQuestion{
		QuestionID:   uuid.New().String(),
		QuestionText: "Unable to generate questions at this time.",
		Options: map[string]string{
			"A": "Please try again",
			"B": "Check agent configuration",
			"C": "Verify knowledge base",
			"D": "Contact support",
		},
		CorrectAnswer: "A",
		Explanation:   "There was an error generating questions. Please try again or check the agent configuration.",
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
