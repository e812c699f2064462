// Package quality implements the content quality controller (C8): a
// registry of validators run over a stage's generated document, combined
// into one pass/fail verdict with a blended score.
package quality

import (
	"regexp"
	"strings"

	"github.com/itechmeat/jeex/pkg/agent"
)

// Result is one validator's verdict.
type Result struct {
	Passed          bool
	Score           float64
	Details         map[string]any
	MissingSections []string
	Suggestions     []string
}

// Validator checks one dimension of a document's quality.
type Validator interface {
	Name() string
	Validate(content string) Result
}

// Controller runs the fixed {markdown, readability} pair plus the
// stage-specific validator for the stage being checked, and combines
// their results.
type Controller struct {
	markdown        Validator
	readability     Validator
	stageValidators map[agent.StageType]Validator
}

func NewController() *Controller {
	return &Controller{
		markdown:    NewMarkdownValidator(),
		readability: NewReadabilityValidator(),
		stageValidators: map[agent.StageType]Validator{
			agent.StageBusinessAnalyst:       NewStageValidator("business analyst", businessAnalystSections),
			agent.StageEngineeringStandards:  NewStageValidator("engineering standards", engineeringStandardsSections),
			agent.StageSolutionArchitect:     NewStageValidator("solution architect", solutionArchitectSections),
			agent.StageImplementationPlanner: NewStageValidator("implementation planner", implementationPlannerSections),
		},
	}
}

// Combined is the merged verdict across every validator run for a stage.
type Combined struct {
	Passed          bool
	Score           float64
	PerValidator    map[string]Result
	MissingSections []string
	Suggestions     []string
}

// Evaluate runs markdown, readability, and the stage-specific validator
// against content, and combines them: score is the arithmetic mean,
// passed is the conjunction, and suggestions/missing sections are
// deduplicated across validators.
func (c *Controller) Evaluate(stage agent.StageType, content string) Combined {
	stageValidator, ok := c.stageValidators[stage]
	validators := []Validator{c.markdown, c.readability}
	if ok {
		validators = append(validators, stageValidator)
	}

	combined := Combined{
		Passed:       true,
		PerValidator: make(map[string]Result, len(validators)),
	}

	missingSeen := make(map[string]bool)
	suggestionSeen := make(map[string]bool)
	var scoreSum float64

	for _, v := range validators {
		res := v.Validate(content)
		combined.PerValidator[v.Name()] = res
		combined.Passed = combined.Passed && res.Passed
		scoreSum += res.Score

		for _, m := range res.MissingSections {
			if !missingSeen[m] {
				missingSeen[m] = true
				combined.MissingSections = append(combined.MissingSections, m)
			}
		}
		for _, s := range res.Suggestions {
			if !suggestionSeen[s] {
				suggestionSeen[s] = true
				combined.Suggestions = append(combined.Suggestions, s)
			}
		}
	}

	if len(validators) > 0 {
		combined.Score = scoreSum / float64(len(validators))
	}

	return combined
}

// Check adapts Evaluate to the pkg/agent.QualityChecker interface shape
// used by stage agents: a failed combined verdict reports its missing
// sections and suggestions as issues.
func (c *Controller) Check(stage agent.StageType, content string) agent.QualityResult {
	combined := c.Evaluate(stage, content)
	if combined.Passed {
		return agent.QualityResult{Passed: true}
	}

	issues := make([]string, 0, len(combined.MissingSections)+len(combined.Suggestions))
	for _, m := range combined.MissingSections {
		issues = append(issues, "missing section: "+m)
	}
	issues = append(issues, combined.Suggestions...)
	return agent.QualityResult{Passed: false, Issues: issues}
}

func countMatches(re *regexp.Regexp, s string) int {
	return len(re.FindAllStringIndex(s, -1))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
