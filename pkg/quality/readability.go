package quality

import (
	"regexp"
	"strings"
)

var (
	sentenceSplitRE = regexp.MustCompile(`[.!?]+\s+`)
	wordSplitRE     = regexp.MustCompile(`\s+`)
	vowelRunRE      = regexp.MustCompile(`(?i)[aeiouy]+`)
)

// ReadabilityValidator scores ease of reading via average sentence length
// and a Flesch-style reading-ease estimate. It never fails the overall
// validation — an empty or unparseable document yields a neutral score
// rather than an error, per the controller's always-include contract.
type ReadabilityValidator struct {
	targetMinWordsPerSentence float64
	targetMaxWordsPerSentence float64
}

func NewReadabilityValidator() *ReadabilityValidator {
	return &ReadabilityValidator{targetMinWordsPerSentence: 10, targetMaxWordsPerSentence: 24}
}

func (v *ReadabilityValidator) Name() string { return "readability" }

func (v *ReadabilityValidator) Validate(content string) Result {
	text := strings.TrimSpace(stripMarkdownSyntax(content))
	if text == "" {
		return Result{Passed: true, Score: 0.5, Details: map[string]any{"neutral": true}}
	}

	sentences := sentenceSplitRE.Split(text, -1)
	var nonEmptySentences []string
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmptySentences = append(nonEmptySentences, s)
		}
	}
	if len(nonEmptySentences) == 0 {
		return Result{Passed: true, Score: 0.5, Details: map[string]any{"neutral": true}}
	}

	words := wordSplitRE.Split(text, -1)
	var nonEmptyWords []string
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			nonEmptyWords = append(nonEmptyWords, w)
		}
	}
	if len(nonEmptyWords) == 0 {
		return Result{Passed: true, Score: 0.5, Details: map[string]any{"neutral": true}}
	}

	avgWordsPerSentence := float64(len(nonEmptyWords)) / float64(len(nonEmptySentences))
	avgSyllablesPerWord := averageSyllables(nonEmptyWords)

	ease := 206.835 - 1.015*avgWordsPerSentence - 84.6*avgSyllablesPerWord

	score := 0.5
	switch {
	case avgWordsPerSentence >= v.targetMinWordsPerSentence && avgWordsPerSentence <= v.targetMaxWordsPerSentence:
		score = 0.9
	case avgWordsPerSentence < v.targetMinWordsPerSentence:
		score = 0.6
	default:
		score = 0.4
	}

	var suggestions []string
	if avgWordsPerSentence > v.targetMaxWordsPerSentence {
		suggestions = append(suggestions, "shorten sentences; average sentence length is high")
	}

	return Result{
		Passed:      true,
		Score:       score,
		Suggestions: suggestions,
		Details: map[string]any{
			"avg_words_per_sentence": avgWordsPerSentence,
			"flesch_reading_ease":    ease,
		},
	}
}

func averageSyllables(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	var total int
	for _, w := range words {
		total += estimateSyllables(w)
	}
	return float64(total) / float64(len(words))
}

func estimateSyllables(word string) int {
	runs := vowelRunRE.FindAllString(word, -1)
	n := len(runs)
	if n == 0 {
		return 1
	}
	return n
}

var markdownSyntaxRE = regexp.MustCompile("(?m)^#{1,6}\\s+|[*_`>-]")

func stripMarkdownSyntax(s string) string {
	return markdownSyntaxRE.ReplaceAllString(s, "")
}
