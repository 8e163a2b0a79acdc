package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Ex1s9/microservices/internal/mq"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratingMessage(t *testing.T, event RatingEvent) mq.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return mq.Message{ID: "msg-1", Data: data}
}

func TestHandleRatingAppliesEvent(t *testing.T) {
	repo := newFakeGameRepo()
	service := NewGameService(repo)
	consumer := NewCounterConsumer(service, nil)

	created, err := service.Create(context.Background(), validGame(uuid.New()))
	require.NoError(t, err)

	msg := ratingMessage(t, RatingEvent{GameID: created.ID, Rating: 4})
	require.NoError(t, consumer.handleRating(context.Background(), msg))

	fetched, err := service.Get(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.RatingCount)
	assert.InDelta(t, 4.0, fetched.AverageRating, 0.01)
}

func TestHandleRatingDropsBadEvents(t *testing.T) {
	service := NewGameService(newFakeGameRepo())
	consumer := NewCounterConsumer(service, nil)

	// Malformed JSON, missing game id, out-of-range rating and unknown
	// game are all dropped without signalling a redelivery.
	assert.NoError(t, consumer.handleRating(context.Background(), mq.Message{ID: "bad", Data: []byte("{")}))
	assert.NoError(t, consumer.handleRating(context.Background(), ratingMessage(t, RatingEvent{Rating: 3})))
	assert.NoError(t, consumer.handleRating(context.Background(), ratingMessage(t, RatingEvent{GameID: uuid.New(), Rating: 9})))
	assert.NoError(t, consumer.handleRating(context.Background(), ratingMessage(t, RatingEvent{GameID: uuid.New(), Rating: 3})))
}

func TestHandlePurchaseAppliesEvent(t *testing.T) {
	service := NewGameService(newFakeGameRepo())
	consumer := NewCounterConsumer(service, nil)

	created, err := service.Create(context.Background(), validGame(uuid.New()))
	require.NoError(t, err)

	data, err := json.Marshal(PurchaseEvent{GameID: created.ID})
	require.NoError(t, err)
	require.NoError(t, consumer.handlePurchase(context.Background(), mq.Message{ID: "msg-2", Data: data}))
	require.NoError(t, consumer.handlePurchase(context.Background(), mq.Message{ID: "msg-3", Data: data}))

	fetched, err := service.Get(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.PurchaseCount)
}

func TestHandlePurchaseDropsUnknownGame(t *testing.T) {
	service := NewGameService(newFakeGameRepo())
	consumer := NewCounterConsumer(service, nil)

	data, err := json.Marshal(PurchaseEvent{GameID: uuid.New()})
	require.NoError(t, err)
	assert.NoError(t, consumer.handlePurchase(context.Background(), mq.Message{ID: "msg-4", Data: data}))
	assert.NoError(t, consumer.handlePurchase(context.Background(), mq.Message{ID: "msg-5", Data: []byte("not json")}))
}
