package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/idempotency"
	"github.com/talkbase-io/go-chatpipe/pkg/ingest"
	"github.com/talkbase-io/go-chatpipe/pkg/intent"
)

type erroringStore struct{ err error }

func (e *erroringStore) SetIfAbsent(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return false, e.err
}

func newTestPipeline(t *testing.T, store idempotency.Store) *ingest.Pipeline {
	t.Helper()
	guard, err := idempotency.NewGuard(store, zerolog.Nop())
	require.NoError(t, err)
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{}, guard, zerolog.Nop())
	require.NoError(t, err)
	return pipeline
}

func telegramPayload(msgID string, text string) []byte {
	return []byte(`{"message": {"message_id": ` + msgID + `, "chat": {"id": 55}, "text": "` + text + `"}}`)
}

func TestPipeline_ProcessNormalizesAndClassifies(t *testing.T) {
	pipeline := newTestPipeline(t, idempotency.NewInMemoryStore())

	result, err := pipeline.Process(context.Background(), "merchant-1", telegramPayload("1", "507f1f77bcf86cd799439011"))
	require.NoError(t, err)

	assert.NotEmpty(t, result.EventID)
	assert.Equal(t, chatmodel.ChannelTelegram, result.Message.Channel)
	assert.Equal(t, "55", result.Message.SessionID)
	assert.Equal(t, intent.StepOrderDetails, result.Intent.Step)
	assert.Equal(t, "507f1f77bcf86cd799439011", result.Intent.OrderID)
}

func TestPipeline_DuplicateDeliveryIsAbsorbed(t *testing.T) {
	pipeline := newTestPipeline(t, idempotency.NewInMemoryStore())
	ctx := context.Background()

	first, err := pipeline.Process(ctx, "merchant-1", telegramPayload("7", "hello"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := pipeline.Process(ctx, "merchant-1", telegramPayload("7", "hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingest.ErrDuplicateEvent))
	assert.Nil(t, second, "a duplicate produces no result and no side effects")
}

func TestPipeline_SameMessageIDDifferentMerchantsAreDistinctEvents(t *testing.T) {
	pipeline := newTestPipeline(t, idempotency.NewInMemoryStore())
	ctx := context.Background()

	_, err := pipeline.Process(ctx, "merchant-a", telegramPayload("9", "hi"))
	require.NoError(t, err)

	_, err = pipeline.Process(ctx, "merchant-b", telegramPayload("9", "hi"))
	require.NoError(t, err, "merchant id is part of the dedup key")
}

func TestPipeline_StoreOutagePropagates(t *testing.T) {
	storeErr := errors.New("redis down")
	pipeline := newTestPipeline(t, &erroringStore{err: storeErr})

	result, err := pipeline.Process(context.Background(), "merchant-1", telegramPayload("3", "hello"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, idempotency.ErrStoreUnavailable),
		"a store outage must not be masked as a fresh event")
	assert.False(t, errors.Is(err, ingest.ErrDuplicateEvent))
	assert.Nil(t, result)
}

func TestPipeline_UnknownPayloadSkipsDedup(t *testing.T) {
	// Unrecognized payloads carry no provider message id; they are processed
	// (tagged unknown) without touching the store.
	storeErr := errors.New("store must not be called")
	pipeline := newTestPipeline(t, &erroringStore{err: storeErr})

	result, err := pipeline.Process(context.Background(), "merchant-1", []byte(`{"mystery": true}`))

	require.NoError(t, err)
	assert.Equal(t, chatmodel.ChannelUnknown, result.Message.Channel)
	assert.Equal(t, intent.StepNormal, result.Intent.Step)
}
