package quality

import "strings"

// businessAnalystSections, etc. list the topical keywords each stage's
// document is expected to touch on; a section is considered present if
// its keyword (or a listed synonym) appears anywhere in the content,
// case-insensitively — stage documents are free-form prose/Markdown, not
// a fixed template, so this checks for topic coverage rather than exact
// heading text.
var (
	businessAnalystSections = []sectionRequirement{
		{Label: "problem statement", Keywords: []string{"problem"}},
		{Label: "target audience", Keywords: []string{"target audience", "target users", "audience"}},
		{Label: "success metrics", Keywords: []string{"success metric", "success criteria", "kpi"}},
	}
	engineeringStandardsSections = []sectionRequirement{
		{Label: "coding standards", Keywords: []string{"coding standard", "code style", "style guide"}},
		{Label: "testing approach", Keywords: []string{"testing", "test strategy", "test coverage"}},
		{Label: "tooling", Keywords: []string{"tooling", "ci", "lint"}},
	}
	solutionArchitectSections = []sectionRequirement{
		{Label: "components", Keywords: []string{"component", "module", "service"}},
		{Label: "data flow", Keywords: []string{"data flow", "data model", "architecture diagram"}},
		{Label: "technology choices", Keywords: []string{"technology", "stack", "framework"}},
	}
	implementationPlannerSections = []sectionRequirement{
		{Label: "milestones", Keywords: []string{"milestone", "phase", "epic"}},
		{Label: "task breakdown", Keywords: []string{"task", "work item", "backlog"}},
		{Label: "dependencies", Keywords: []string{"dependency", "dependencies", "blocker"}},
	}
)

type sectionRequirement struct {
	Label    string
	Keywords []string
}

// StageValidator asserts the presence of the required topical sections
// for one pipeline stage.
type StageValidator struct {
	label        string
	requirements []sectionRequirement
}

func NewStageValidator(label string, requirements []sectionRequirement) *StageValidator {
	return &StageValidator{label: label, requirements: requirements}
}

func (v *StageValidator) Name() string { return v.label }

func (v *StageValidator) Validate(content string) Result {
	lower := normalize(content)

	var missing []string
	present := 0
	for _, req := range v.requirements {
		if hasAnyKeyword(lower, req.Keywords) {
			present++
		} else {
			missing = append(missing, req.Label)
		}
	}

	score := float64(present) / float64(len(v.requirements))
	return Result{
		Passed:          len(missing) == 0,
		Score:           score,
		MissingSections: missing,
	}
}

func hasAnyKeyword(lowerContent string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lowerContent, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
