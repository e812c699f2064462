package config

import "time"

// Defaults contains system-wide default configurations, used when a
// request or stage does not specify its own override.
type Defaults struct {
	// LLMProvider names the default provider used when a stage agent does
	// not request a specific one.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// MaxRetrievalChunks bounds how many context chunks gather_context
	// pulls from the vector store per stage.
	MaxRetrievalChunks int `yaml:"max_retrieval_chunks,omitempty" validate:"omitempty,min=1"`

	// ChunkSize and ChunkOverlap are loaded and validated; no production
	// code path reads them.
	ChunkSize    int `yaml:"chunk_size,omitempty" validate:"omitempty,min=1"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty" validate:"omitempty,min=0"`

	// TechnologyStack backs the Engineering Standards stage's
	// technology_stack field when a project doesn't supply its own.
	TechnologyStack string `yaml:"technology_stack,omitempty"`

	// InterStagePause is the workflow engine's best-effort pause between
	// stages (a system-stability delay, not a correctness property).
	InterStagePause time.Duration `yaml:"inter_stage_pause,omitempty" validate:"omitempty,min=0"`
}

// DefaultDefaults returns the built-in values applied when the YAML
// configuration omits a Defaults block or leaves fields unset.
func DefaultDefaults() *Defaults {
	return &Defaults{
		LLMProvider:        "anthropic",
		MaxRetrievalChunks: 8,
		ChunkSize:          800,
		ChunkOverlap:       120,
		TechnologyStack:    "Go, PostgreSQL, Redis",
		InterStagePause:    time.Second,
	}
}
