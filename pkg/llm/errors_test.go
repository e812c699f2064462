package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError_TruncatesDetailsTo512Chars(t *testing.T) {
	long := strings.Repeat("x", 1000)
	err := newError(ErrorMalformed, "anthropic", "corr-1", long, nil)
	assert.Len(t, err.Details, maxDetailLength)
}

func TestNewError_ShortDetailsUnaffected(t *testing.T) {
	err := newError(ErrorMalformed, "anthropic", "corr-1", "short message", nil)
	assert.Equal(t, "short message", err.Details)
}

func TestError_ErrorStringIncludesProviderAndKind(t *testing.T) {
	err := newError(ErrorRequestFailed, "bedrock", "corr-1", "timeout", nil)
	s := err.Error()
	assert.Contains(t, s, "bedrock")
	assert.Contains(t, s, string(ErrorRequestFailed))
}
