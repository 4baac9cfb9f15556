package workflow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hr-workflow/internal/model"
)

var (
	leaveWords    = []string{"conge", "leave", "vacance", "vacation"}
	trainingWords = []string{"formation", "training"}
)

// Fold lower-cases s and strips combining marks, so "Congé" folds to "conge".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Classify derives the category of a request type and, for TwoStage types,
// the calendar event type it projects to.
func Classify(requestType string) (model.Category, model.EventType) {
	folded := Fold(requestType)
	for _, w := range leaveWords {
		if strings.Contains(folded, w) {
			return model.CategoryTwoStage, model.EventTypeLeave
		}
	}
	for _, w := range trainingWords {
		if strings.Contains(folded, w) {
			return model.CategoryTwoStage, model.EventTypeTraining
		}
	}
	return model.CategorySingleStage, ""
}
