package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/metrics"
)

// registeredProvider pairs a Provider with its own circuit breaker and
// registration order, so failover iterates providers deterministically.
type registeredProvider struct {
	provider Provider
	breaker  *providerBreaker
	order    int
}

// Manager holds every configured provider behind its own circuit breaker
// and drives the requested-provider-first, then-failover sequence.
type Manager struct {
	mu              sync.RWMutex
	providers       map[string]*registeredProvider
	defaultProvider string
	nextOrder       int
}

func NewManager() *Manager {
	return &Manager{providers: make(map[string]*registeredProvider)}
}

// Register adds a provider to the manager. Providers with missing
// credentials are simply never registered by the caller at startup —
// Register itself has no opinion on credentials.
func (m *Manager) Register(provider Provider, breakerCfg BreakerConfig, isDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[provider.Name()] = &registeredProvider{
		provider: provider,
		breaker:  newProviderBreaker(provider.Name(), breakerCfg),
		order:    m.nextOrder,
	}
	m.nextOrder++
	if isDefault || m.defaultProvider == "" {
		m.defaultProvider = provider.Name()
	}
}

// orderedNames returns every registered provider name in registration
// order.
func (m *Manager) orderedNames() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.providers[names[i]].order < m.providers[names[j]].order
	})
	return names
}

// Generate tries the requested provider (or the default) first; on any
// LLMError — including a breaker rejection — it falls through the
// remaining registered providers in registration order. If every
// provider fails, it raises AllProvidersFailed carrying the attempted
// providers and each one's last error.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest, preferredProvider string) (GenerateResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.providers) == 0 {
		return GenerateResponse{}, newError(ErrorNotConfigured, "", req.CorrelationID, "no LLM providers registered", nil)
	}

	start := preferredProvider
	if start == "" {
		start = m.defaultProvider
	}

	order := m.orderedNames()
	sequence := make([]string, 0, len(order))
	if _, ok := m.providers[start]; ok {
		sequence = append(sequence, start)
	}
	for _, name := range order {
		if name != start {
			sequence = append(sequence, name)
		}
	}

	attempted := make([]string, 0, len(sequence))
	lastErrors := make(map[string]error, len(sequence))

	for _, name := range sequence {
		rp := m.providers[name]
		attempted = append(attempted, name)

		callStart := time.Now()
		resp, err := rp.breaker.execute(ctx, name, req.CorrelationID, func(ctx context.Context) (GenerateResponse, error) {
			return withRetry(ctx, func(ctx context.Context, _ int) (GenerateResponse, error) {
				return rp.provider.Generate(ctx, req)
			})
		})
		duration := time.Since(callStart)
		if err == nil {
			metrics.ObserveLLMCall(name, "success", duration)
			return resp, nil
		}
		outcome := "error"
		if llmErr, ok := err.(*Error); ok && llmErr.Kind == ErrorBreakerOpen {
			outcome = "breaker_open"
		}
		metrics.ObserveLLMCall(name, outcome, duration)
		lastErrors[name] = err
	}

	return GenerateResponse{}, &AllProvidersFailedError{
		Attempted:  attempted,
		LastErrors: lastErrors,
	}
}

// AllProvidersFailedError carries the full set of attempted providers and
// each one's last error, per spec's AllProvidersFailed contract.
type AllProvidersFailedError struct {
	Attempted  []string
	LastErrors map[string]error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("llm %s: all %d provider(s) failed: %v", ErrorAllProvidersFailed, len(e.Attempted), e.Attempted)
}

func (e *AllProvidersFailedError) Kind() ErrorKind { return ErrorAllProvidersFailed }

// ClientAdapter exposes Manager through pkg/agent.LLMClient, the narrow
// interface stage agents call through.
type ClientAdapter struct {
	manager           *Manager
	preferredProvider string
}

func NewClientAdapter(manager *Manager, preferredProvider string) *ClientAdapter {
	return &ClientAdapter{manager: manager, preferredProvider: preferredProvider}
}

func (a *ClientAdapter) Complete(ctx context.Context, req agent.CompletionRequest) (agent.CompletionResponse, error) {
	messages := []Message{
		{Role: RoleSystem, Content: req.SystemPrompt},
		{Role: RoleUser, Content: req.UserPrompt},
	}

	resp, err := a.manager.Generate(ctx, GenerateRequest{
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, a.preferredProvider)
	if err != nil {
		return agent.CompletionResponse{}, err
	}

	return agent.CompletionResponse{
		Content: resp.Content,
		Usage: agent.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
