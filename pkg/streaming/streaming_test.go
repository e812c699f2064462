package streaming_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/kv"
	"github.com/itechmeat/jeex/pkg/streaming"
)

func newTestHub(t *testing.T) *streaming.Hub {
	t.Helper()
	srv := miniredis.RunT(t)
	client := kv.NewFromRedisClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	return streaming.NewHub(client)
}

func TestHub_SubscribePublish_DeliversEnvelopeToSubscriber(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	tenantID, projectID := uuid.New(), uuid.New()

	events, unsubscribe, err := hub.Subscribe(ctx, tenantID, projectID)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, hub.Publish(ctx, tenantID, projectID, streaming.Envelope{
		Type:       streaming.EventStepStart,
		WorkflowID: "corr-1",
	}))

	select {
	case env := <-events:
		assert.Equal(t, streaming.EventStepStart, env.Type)
		assert.Equal(t, "corr-1", env.WorkflowID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestHub_Publish_DoesNotCrossTenantProjectScope(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	tenantA, projectA := uuid.New(), uuid.New()
	tenantB, projectB := uuid.New(), uuid.New()

	eventsA, unsubA, err := hub.Subscribe(ctx, tenantA, projectA)
	require.NoError(t, err)
	defer unsubA()

	require.NoError(t, hub.Publish(ctx, tenantB, projectB, streaming.Envelope{Type: streaming.EventComplete}))

	select {
	case <-eventsA:
		t.Fatal("received an event scoped to a different tenant/project")
	case <-time.After(200 * time.Millisecond):
	}
}

type fakeResolver struct {
	tenantID, projectID uuid.UUID
}

func (f fakeResolver) ResolveScope(_ context.Context, _ string) (uuid.UUID, uuid.UUID, error) {
	return f.tenantID, f.projectID, nil
}

func TestProgressPublisher_ClassifiesEventTypeFromFractionAndMessage(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	tenantID, projectID := uuid.New(), uuid.New()

	events, unsubscribe, err := hub.Subscribe(ctx, tenantID, projectID)
	require.NoError(t, err)
	defer unsubscribe()

	pub := streaming.NewProgressPublisher(hub, fakeResolver{tenantID: tenantID, projectID: projectID})

	require.NoError(t, pub.PublishStageProgress(ctx, "corr-1", agent.StageBusinessAnalyst, 0.0, "starting"))

	select {
	case env := <-events:
		assert.Equal(t, streaming.EventStepStart, env.Type)
		assert.Equal(t, "business_analyst", env.Payload["stage"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}
