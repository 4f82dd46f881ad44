package quiz

import (
	"fmt"
	"strings"

	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

const systemPrompt = `You write classroom quizzes for Rwandan primary and secondary students.
Use only the numbered source passages. Every question must be answerable from them.

Respond with JSON only:
{"questions": [{"question": "...", "options": ["...", "..."], "answer": "...", "explanation": "...", "source": 1}]}

- "options" has four choices for multiple choice questions, or is empty for short answer.
- "answer" is the correct option text or the expected short answer.
- "source" is the number of the passage the answer comes from.`

var difficultyHints = map[string]string{
	DifficultyEasy:   "Ask about facts stated directly in the passages.",
	DifficultyMedium: "Mix recall with questions that need one step of reasoning.",
	DifficultyHard:   "Ask questions that combine ideas or apply them to new situations.",
}

func userPrompt(q *models.QuizModel, chunks []models.ChunkModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s questions. %s\n\nSources:\n", q.NumQuestions, q.Difficulty, difficultyHints[q.Difficulty])
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] (page %d)\n%s\n", i+1, c.Page, c.Content)
	}
	return b.String()
}
