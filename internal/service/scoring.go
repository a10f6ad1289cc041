package service

import (
	"github.com/Soule73/evalium-sub002/internal/models"
)

// QuestionScore is the outcome of auto-scoring one question.
type QuestionScore struct {
	// Value is nil for question types that need manual grading.
	Value *float64
	// Duplicates counts extra rows found on a single-valued question. They are scored 0.
	Duplicates int
}

type questionScorer func(question models.Question, answers []models.Answer) QuestionScore

var questionScorers = map[models.QuestionType]questionScorer{
	models.QuestionTypeOneChoice: scoreSingleChoice,
	models.QuestionTypeBoolean:   scoreSingleChoice,
	models.QuestionTypeMultiple:  scoreExactSet,
}

// ScoreQuestion auto-scores an objective question from its recorded answers.
func ScoreQuestion(question models.Question, answers []models.Answer) QuestionScore {
	scorer, ok := questionScorers[question.Type]
	if !ok {
		return QuestionScore{}
	}
	return scorer(question, answers)
}

// IsAutoScored reports whether ScoreQuestion produces a value for the type.
func IsAutoScored(questionType models.QuestionType) bool {
	_, ok := questionScorers[questionType]
	return ok
}

func scoreSingleChoice(question models.Question, answers []models.Answer) QuestionScore {
	points := 0.0
	result := QuestionScore{Value: &points}
	if len(answers) == 0 {
		return result
	}
	result.Duplicates = len(answers) - 1

	first := answers[0]
	if first.ChoiceID == nil {
		return result
	}
	for _, choice := range question.Choices {
		if choice.ID == *first.ChoiceID && choice.IsCorrect {
			points = question.Points
			break
		}
	}
	return result
}

// scoreExactSet awards full points only when the selected set equals the correct set.
func scoreExactSet(question models.Question, answers []models.Answer) QuestionScore {
	points := 0.0
	result := QuestionScore{Value: &points}

	selected := make(map[uint]struct{}, len(answers))
	for _, answer := range answers {
		if answer.ChoiceID != nil {
			selected[*answer.ChoiceID] = struct{}{}
		}
	}
	correct := question.CorrectChoiceIDs()
	if len(selected) == 0 || len(selected) != len(correct) {
		return result
	}
	for _, id := range correct {
		if _, ok := selected[id]; !ok {
			return result
		}
	}
	points = question.Points
	return result
}

// DistributeScore spreads a question score over its answer rows: the first row carries it, the others get 0.
func DistributeScore(answers []models.Answer, score float64) []float64 {
	values := make([]float64, len(answers))
	if len(values) > 0 {
		values[0] = score
	}
	return values
}

// SumScores adds the non-nil scores.
func SumScores(scores []*float64) float64 {
	total := 0.0
	for _, score := range scores {
		if score != nil {
			total += *score
		}
	}
	return total
}

func groupAnswersByQuestion(answers []models.Answer) map[uint][]models.Answer {
	grouped := make(map[uint][]models.Answer)
	for _, answer := range answers {
		grouped[answer.QuestionID] = append(grouped[answer.QuestionID], answer)
	}
	return grouped
}
