package quality

import "regexp"

var (
	h1RE       = regexp.MustCompile(`(?m)^#\s+\S`)
	h2h3RE     = regexp.MustCompile(`(?m)^#{2,3}\s+\S`)
	listRE     = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+\S`)
	fencedRE   = regexp.MustCompile("(?s)```.*?```")
	openFence  = regexp.MustCompile("```")
)

// MarkdownValidator checks structural well-formedness: a top-level
// heading is required; secondary/tertiary headings, lists, and fenced
// code blocks each add to the score; an odd number of fence markers
// signals an unterminated code block.
type MarkdownValidator struct{}

func NewMarkdownValidator() *MarkdownValidator {
	return &MarkdownValidator{}
}

func (v *MarkdownValidator) Name() string { return "markdown" }

func (v *MarkdownValidator) Validate(content string) Result {
	if h1RE.FindStringIndex(content) == nil {
		return Result{
			Passed:      false,
			Score:       0,
			Suggestions: []string{"add a top-level heading (# Title)"},
			Details:     map[string]any{"has_h1": false},
		}
	}

	fenceCount := len(openFence.FindAllStringIndex(content, -1))
	if fenceCount%2 != 0 {
		return Result{
			Passed:      false,
			Score:       0.2,
			Suggestions: []string{"close every fenced code block (unterminated ``` found)"},
			Details:     map[string]any{"has_h1": true, "fence_count": fenceCount},
		}
	}

	score := 0.6
	var suggestions []string

	if countMatches(h2h3RE, content) > 0 {
		score += 0.15
	} else {
		suggestions = append(suggestions, "add secondary headings (##, ###) to structure the document")
	}

	if countMatches(listRE, content) > 0 {
		score += 0.15
	} else {
		suggestions = append(suggestions, "use lists where the content enumerates items")
	}

	if countMatches(fencedRE, content) > 0 {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}

	return Result{
		Passed:      true,
		Score:       score,
		Suggestions: suggestions,
		Details: map[string]any{
			"has_h1":      true,
			"fence_count": fenceCount,
		},
	}
}
