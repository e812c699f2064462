package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	response GenerateResponse
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, _ GenerateRequest) (GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return GenerateResponse{}, f.err
	}
	return f.response, nil
}

func fastBreaker() BreakerConfig {
	return BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Hour}
}

func TestManager_Generate_UsesDefaultProvider(t *testing.T) {
	m := NewManager()
	primary := &fakeProvider{name: "anthropic", response: GenerateResponse{Content: "hi"}}
	m.Register(primary, fastBreaker(), true)

	resp, err := m.Generate(context.Background(), GenerateRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, 1, primary.calls)
}

func TestManager_Generate_FailsOverToNextProvider(t *testing.T) {
	m := NewManager()
	primary := &fakeProvider{name: "anthropic", err: newHTTPStatusError("anthropic", "", 400, "bad", nil)}
	secondary := &fakeProvider{name: "bedrock", response: GenerateResponse{Content: "from bedrock"}}
	m.Register(primary, fastBreaker(), true)
	m.Register(secondary, fastBreaker(), false)

	resp, err := m.Generate(context.Background(), GenerateRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, "from bedrock", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestManager_Generate_AllProvidersFailedCarriesAttemptedSet(t *testing.T) {
	m := NewManager()
	primary := &fakeProvider{name: "anthropic", err: newHTTPStatusError("anthropic", "", 400, "bad", nil)}
	secondary := &fakeProvider{name: "bedrock", err: newHTTPStatusError("bedrock", "", 400, "bad", nil)}
	m.Register(primary, fastBreaker(), true)
	m.Register(secondary, fastBreaker(), false)

	_, err := m.Generate(context.Background(), GenerateRequest{}, "")
	require.Error(t, err)

	var allFailed *AllProvidersFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.ElementsMatch(t, []string{"anthropic", "bedrock"}, allFailed.Attempted)
	assert.Len(t, allFailed.LastErrors, 2)
}

func TestManager_Generate_NoProvidersRegisteredIsNotConfigured(t *testing.T) {
	m := NewManager()
	_, err := m.Generate(context.Background(), GenerateRequest{}, "")
	require.Error(t, err)

	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrorNotConfigured, llmErr.Kind)
}

func TestManager_Generate_PreferredProviderOverridesDefault(t *testing.T) {
	m := NewManager()
	primary := &fakeProvider{name: "anthropic", response: GenerateResponse{Content: "a"}}
	secondary := &fakeProvider{name: "bedrock", response: GenerateResponse{Content: "b"}}
	m.Register(primary, fastBreaker(), true)
	m.Register(secondary, fastBreaker(), false)

	resp, err := m.Generate(context.Background(), GenerateRequest{}, "bedrock")
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Content)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}
