// Package streaming implements the SSE event-delivery service (C13):
// per-(tenant, project) fanout of workflow events to subscribed clients,
// backed by Redis pub/sub for cross-process distribution. It replaces
// the teacher's WebSocket ConnectionManager with a single-direction
// server-sent-event stream and a pub/sub channel keyed by tenant and
// project rather than the teacher's session id.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/kv"
)

// EventType enumerates the fixed envelope types a client may observe.
type EventType string

const (
	EventStart        EventType = "start"
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventStepError    EventType = "step_error"
	EventComplete     EventType = "complete"
	EventProgress     EventType = "progress"
	EventError        EventType = "error"
)

// Envelope is the fixed event shape delivered to every subscriber.
type Envelope struct {
	Type       EventType      `json:"type"`
	WorkflowID string         `json:"workflow_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// channelName is the tenant+project-scoped pub/sub channel per §5's
// shared-resource policy: every Redis key/channel is tenant-prefixed.
func channelName(tenantID, projectID uuid.UUID) string {
	return fmt.Sprintf("tenant:%s:project:%s:events", tenantID, projectID)
}

// subscriber is one local SSE client's delivery queue. Buffered so a
// slow client cannot block the publishing goroutine; while the buffer
// is full, new events for that client are skipped rather than stalling
// broadcast for everyone else. The client stays subscribed.
type subscriber struct {
	id uuid.UUID
	ch chan Envelope
}

const subscriberBufferSize = 64

// Hub fans local Redis-pubsub deliveries out to the SSE subscribers
// currently registered for each channel. One Hub instance is shared
// across every request in the process, mirroring the teacher's
// single-ConnectionManager-per-pod design.
type Hub struct {
	redis *kv.Client

	mu       sync.RWMutex
	channels map[string]map[uuid.UUID]*subscriber

	cancelMu    sync.Mutex
	cancelFuncs map[string]context.CancelFunc
}

// NewHub creates a Hub backed by the given Redis client.
func NewHub(redis *kv.Client) *Hub {
	return &Hub{
		redis:       redis,
		channels:    make(map[string]map[uuid.UUID]*subscriber),
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// Subscribe registers a new SSE client for the given tenant/project and
// returns a channel of envelopes plus an unsubscribe function. The
// caller's HTTP handler range-reads the channel until the request
// context is cancelled, then calls unsubscribe.
func (h *Hub) Subscribe(ctx context.Context, tenantID, projectID uuid.UUID) (<-chan Envelope, func(), error) {
	channel := channelName(tenantID, projectID)
	sub := &subscriber{id: uuid.New(), ch: make(chan Envelope, subscriberBufferSize)}

	h.mu.Lock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[uuid.UUID]*subscriber)
	}
	h.channels[channel][sub.id] = sub
	needsListener := len(h.channels[channel]) == 1
	h.mu.Unlock()

	if needsListener {
		if err := h.startListening(channel); err != nil {
			h.removeSubscriber(channel, sub.id)
			return nil, nil, err
		}
	}

	unsubscribe := func() { h.removeSubscriber(channel, sub.id) }
	return sub.ch, unsubscribe, nil
}

func (h *Hub) removeSubscriber(channel string, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	if sub, ok := subs[id]; ok {
		close(sub.ch)
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(h.channels, channel)
		h.stopListening(channel)
	}
}

// startListening opens a Redis pub/sub subscription for channel and
// forwards every message to the channel's local subscribers. Idempotent
// per channel: only called while holding the invariant that this is the
// channel's first local subscriber.
func (h *Hub) startListening(channel string) error {
	listenCtx, cancel := context.WithCancel(context.Background())

	h.cancelMu.Lock()
	h.cancelFuncs[channel] = cancel
	h.cancelMu.Unlock()

	pubsub := h.redis.Subscribe(listenCtx, channel)
	if _, err := pubsub.Receive(listenCtx); err != nil {
		cancel()
		return fmt.Errorf("streaming: subscribe to %s: %w", channel, err)
	}

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-listenCtx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					slog.Warn("streaming: malformed envelope on channel", "channel", channel, "error", err)
					continue
				}
				h.broadcastLocal(channel, env)
			}
		}
	}()
	return nil
}

func (h *Hub) stopListening(channel string) {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	if cancel, ok := h.cancelFuncs[channel]; ok {
		cancel()
		delete(h.cancelFuncs, channel)
	}
}

// broadcastLocal delivers env to every subscriber currently registered
// on channel in this process. A subscriber whose buffer is full misses
// this event rather than blocking delivery to the rest — a slow or reconnecting
// client simply misses events, which §4.11 explicitly permits.
func (h *Hub) broadcastLocal(channel string, env Envelope) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.channels[channel]))
	for _, sub := range h.channels[channel] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- env:
		default:
			slog.Warn("streaming: subscriber buffer full, dropping event", "channel", channel, "subscriber_id", sub.id)
		}
	}
}

// Publish publishes an envelope to the tenant/project's channel. This is
// the only write path into the fanout — both the per-stage progress
// adapter and the workflow-completion adapter call through it.
func (h *Hub) Publish(ctx context.Context, tenantID, projectID uuid.UUID, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("streaming: marshal envelope: %w", err)
	}
	if err := h.redis.Publish(ctx, channelName(tenantID, projectID), body).Err(); err != nil {
		return fmt.Errorf("streaming: publish: %w", err)
	}
	return nil
}

// ProgressPublisher adapts a Hub to pkg/agent.EventPublisher, resolving
// the tenant/project scope for a correlation id via Resolver.
type ProgressPublisher struct {
	hub      *Hub
	resolver Resolver
}

// Resolver maps a correlation id back to its tenant/project scope. The
// orchestrator already carries both on every call, but EventPublisher's
// interface is deliberately narrow (ctx, correlationID, stage, fraction,
// message) per pkg/agent's own design, so the adapter looks the scope
// back up rather than widening that interface.
type Resolver interface {
	ResolveScope(ctx context.Context, correlationID string) (tenantID, projectID uuid.UUID, err error)
}

func NewProgressPublisher(hub *Hub, resolver Resolver) *ProgressPublisher {
	return &ProgressPublisher{hub: hub, resolver: resolver}
}

// ScopeRegistry is the default Resolver: an in-memory map from
// correlation id to (tenant, project), populated by the caller that
// starts a stage or workflow run before invoking it, and forgotten once
// the run completes. Mirrors Hub's own local-map-plus-mutex shape since
// both solve the same "narrow interface, look the rest up" problem.
type ScopeRegistry struct {
	mu     sync.RWMutex
	scopes map[string][2]uuid.UUID
}

func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{scopes: make(map[string][2]uuid.UUID)}
}

// Register records the scope a correlation id belongs to. Call before
// starting the run it covers.
func (r *ScopeRegistry) Register(correlationID string, tenantID, projectID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[correlationID] = [2]uuid.UUID{tenantID, projectID}
}

// Forget drops a correlation id's scope once its run has finished
// publishing events.
func (r *ScopeRegistry) Forget(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopes, correlationID)
}

// ResolveScope implements Resolver.
func (r *ScopeRegistry) ResolveScope(_ context.Context, correlationID string) (uuid.UUID, uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scope, ok := r.scopes[correlationID]
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("streaming: no scope registered for correlation id %s", correlationID)
	}
	return scope[0], scope[1], nil
}

// PublishStageProgress implements agent.EventPublisher.
func (p *ProgressPublisher) PublishStageProgress(ctx context.Context, correlationID string, stage agent.StageType, fraction float64, message string) error {
	tenantID, projectID, err := p.resolver.ResolveScope(ctx, correlationID)
	if err != nil {
		return err
	}

	eventType := EventProgress
	switch {
	case fraction == 0 && message == "starting":
		eventType = EventStepStart
	case fraction == 1 && message == "completed":
		eventType = EventStepComplete
	case fraction == 0 && len(message) >= 6 && message[:6] == "failed":
		eventType = EventStepError
	}

	return p.hub.Publish(ctx, tenantID, projectID, Envelope{
		Type:       eventType,
		WorkflowID: correlationID,
		Timestamp:  time.Now().UTC(),
		Payload: map[string]any{
			"stage":    string(stage),
			"fraction": fraction,
			"message":  message,
		},
	})
}

// CompletionPublisher adapts a Hub to pkg/workflow.CompletionPublisher.
type CompletionPublisher struct {
	hub *Hub
}

func NewCompletionPublisher(hub *Hub) *CompletionPublisher {
	return &CompletionPublisher{hub: hub}
}

// Flusher is the subset of http.Flusher an SSE writer needs.
type Flusher interface {
	Flush()
}

// WriteSSE writes envelopes to w in text/event-stream wire format as
// they arrive on the channel, flushing after each one, until either the
// channel closes or ctx is cancelled (a dropped client connection). It
// terminates early once a `complete` or `error` envelope is written,
// matching §4.11's "at most one of {complete, error} terminates the
// sequence" contract.
func WriteSSE(ctx context.Context, w io.Writer, flusher Flusher, envelopes <-chan Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}
			body, err := json.Marshal(env)
			if err != nil {
				return fmt.Errorf("streaming: marshal sse envelope: %w", err)
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
				return err
			}
			flusher.Flush()
			if env.Type == EventComplete || env.Type == EventError {
				return nil
			}
		}
	}
}

// PublishWorkflowComplete implements workflow.CompletionPublisher.
func (p *CompletionPublisher) PublishWorkflowComplete(ctx context.Context, tenantID, projectID uuid.UUID, correlationID string) error {
	return p.hub.Publish(ctx, tenantID, projectID, Envelope{
		Type:       EventComplete,
		WorkflowID: correlationID,
		Timestamp:  time.Now().UTC(),
	})
}
