package agent

import (
	"fmt"
	"strings"
)

// stageRole is the one-line role description build_prompt's system
// prompt opens with for each stage.
var stageRole = map[StageType]string{
	StageBusinessAnalyst:       "a business analyst turning a product idea into a clear problem statement, target audience, and success metrics",
	StageEngineeringStandards:  "a staff engineer defining the coding standards, testing approach, and tooling a team should follow",
	StageSolutionArchitect:     "a solutions architect describing the system's components, data flow, and technology choices",
	StageImplementationPlanner: "a delivery lead breaking a solution architecture into milestones, tasks, and dependencies",
}

// TemplatePromptBuilder implements PromptBuilder the way build_prompt
// composes a stage's prompt: a stage-specific system prompt naming the
// target language and role, and a user prompt enumerating the provided
// inputs, retrieved context, and the previous stage's content.
type TemplatePromptBuilder struct {
	// Language is the target language every system prompt names.
	// Defaults to "English" when empty.
	Language string
}

func NewTemplatePromptBuilder(language string) *TemplatePromptBuilder {
	return &TemplatePromptBuilder{Language: language}
}

// BuildSystemPrompt implements PromptBuilder.
func (b *TemplatePromptBuilder) BuildSystemPrompt(stage StageType) string {
	language := b.Language
	if language == "" {
		language = "English"
	}
	role, ok := stageRole[stage]
	if !ok {
		role = "a documentation assistant"
	}
	return fmt.Sprintf(
		"You are %s. Write your response in %s, as well-structured Markdown. "+
			"Be concrete and specific; avoid filler and generic advice.",
		role, language,
	)
}

// BuildUserPrompt implements PromptBuilder.
func (b *TemplatePromptBuilder) BuildUserPrompt(execCtx *ExecutionContext, prevStageContent string) string {
	var sb strings.Builder

	sb.WriteString("Task input:\n")
	sb.WriteString(execCtx.UserInput)
	sb.WriteString("\n")

	if prevStageContent != "" {
		sb.WriteString("\nPrevious stage output to build on:\n")
		sb.WriteString(prevStageContent)
		sb.WriteString("\n")
	}

	if len(execCtx.RetrievedContext) > 0 {
		sb.WriteString("\nRelevant context from earlier work on this project:\n")
		for _, chunk := range execCtx.RetrievedContext {
			sb.WriteString(fmt.Sprintf("- (%s) %s\n", chunk.Source, chunk.Content))
		}
	}

	return sb.String()
}
