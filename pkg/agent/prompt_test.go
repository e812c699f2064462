package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplatePromptBuilder_BuildSystemPrompt(t *testing.T) {
	b := NewTemplatePromptBuilder("French")

	tests := []struct {
		stage        StageType
		wantContains string
	}{
		{StageBusinessAnalyst, "business analyst"},
		{StageEngineeringStandards, "staff engineer"},
		{StageSolutionArchitect, "solutions architect"},
		{StageImplementationPlanner, "delivery lead"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			prompt := b.BuildSystemPrompt(tt.stage)
			assert.Contains(t, prompt, tt.wantContains)
			assert.Contains(t, prompt, "French")
		})
	}
}

func TestTemplatePromptBuilder_BuildSystemPrompt_DefaultsToEnglish(t *testing.T) {
	b := NewTemplatePromptBuilder("")
	assert.Contains(t, b.BuildSystemPrompt(StageBusinessAnalyst), "English")
}

func TestTemplatePromptBuilder_BuildUserPrompt(t *testing.T) {
	b := NewTemplatePromptBuilder("English")

	execCtx := &ExecutionContext{
		UserInput: "A fitness-tracking mobile app",
		RetrievedContext: []ContextChunk{
			{Content: "Users want social challenges", Source: "about v1"},
		},
	}

	prompt := b.BuildUserPrompt(execCtx, "Prior architecture notes")
	assert.Contains(t, prompt, "A fitness-tracking mobile app")
	assert.Contains(t, prompt, "Prior architecture notes")
	assert.Contains(t, prompt, "Users want social challenges")
}

func TestTemplatePromptBuilder_BuildUserPrompt_NoPriorStageOmitsSection(t *testing.T) {
	b := NewTemplatePromptBuilder("English")
	execCtx := &ExecutionContext{UserInput: "idea"}

	prompt := b.BuildUserPrompt(execCtx, "")
	assert.NotContains(t, prompt, "Previous stage output")
}
