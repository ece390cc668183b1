package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopStore_StoreAndGetMessage(t *testing.T) {
	store := NewNoopStore()
	record := &MessageRecord{
		MessageID:     "msg-1",
		Direction:     DirectionOutbound,
		SenderAS2ID:   "sender-id",
		ReceiverAS2ID: "receiver-id",
		SentAt:        time.Now().UTC(),
	}
	require.NoError(t, store.StoreMessage(context.Background(), record))

	got, err := store.GetMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "sender-id", got.SenderAS2ID)
}

func TestNoopStore_GetMessage_NotFound(t *testing.T) {
	store := NewNoopStore()
	_, err := store.GetMessage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoopStore_UpdateDisposition(t *testing.T) {
	store := NewNoopStore()
	require.NoError(t, store.StoreMessage(context.Background(), &MessageRecord{MessageID: "msg-1", SentAt: time.Now()}))

	receivedAt := time.Now().UTC()
	require.NoError(t, store.UpdateDisposition(context.Background(), "msg-1", "automatic-action/MDN-sent-automatically; processed", receivedAt))

	got, err := store.GetMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Contains(t, got.Disposition, "processed")
	require.NotNil(t, got.DispositionAt)
}

func TestNoopStore_ListMessages_FiltersByDirection(t *testing.T) {
	store := NewNoopStore()
	now := time.Now().UTC()
	require.NoError(t, store.StoreMessage(context.Background(), &MessageRecord{MessageID: "out-1", Direction: DirectionOutbound, SentAt: now}))
	require.NoError(t, store.StoreMessage(context.Background(), &MessageRecord{MessageID: "in-1", Direction: DirectionInbound, SentAt: now.Add(time.Second)}))

	out, err := store.ListMessages(context.Background(), &MessageFilter{Direction: DirectionInbound})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "in-1", out[0].MessageID)
}
