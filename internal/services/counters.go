package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/Ex1s9/microservices/internal/mq"
	"github.com/Ex1s9/microservices/internal/store"
	"github.com/google/uuid"
)

// Channels carrying counter events from the rating and purchase services.
const (
	RatingChannel   = "game.ratings"
	PurchaseChannel = "game.purchases"
)

// RatingEvent is published by the rating service after a player rates a game.
type RatingEvent struct {
	GameID uuid.UUID `json:"game_id"`
	Rating float64   `json:"rating"`
}

// PurchaseEvent is published by the purchase service after a completed sale.
type PurchaseEvent struct {
	GameID uuid.UUID `json:"game_id"`
}

// CounterConsumer applies externally published rating and purchase events to
// the catalog's aggregate counters. The catalog never mutates counters on its
// own; this consumer is the only write path.
type CounterConsumer struct {
	games *GameService
	queue *mq.MQ
}

func NewCounterConsumer(games *GameService, queue *mq.MQ) *CounterConsumer {
	return &CounterConsumer{games: games, queue: queue}
}

// Run subscribes to both counter channels and blocks until ctx is cancelled
// or a subscription fails.
func (c *CounterConsumer) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- c.queue.Subscribe(ctx, RatingChannel, c.handleRating)
	}()
	go func() {
		errCh <- c.queue.Subscribe(ctx, PurchaseChannel, c.handlePurchase)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleRating folds a rating into the aggregate. Malformed or unroutable
// events are dropped; storage failures are returned so the broker redelivers.
func (c *CounterConsumer) handleRating(ctx context.Context, msg mq.Message) error {
	var event RatingEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("dropping malformed rating event %s: %v", msg.ID, err)
		return nil
	}
	if event.GameID == uuid.Nil {
		log.Printf("dropping rating event %s: missing game_id", msg.ID)
		return nil
	}

	err := c.games.ApplyRating(ctx, event.GameID, event.Rating)
	if err == nil {
		return nil
	}
	var validationErr *store.ValidationError
	if errors.As(err, &validationErr) || errors.Is(err, store.ErrNotFound) {
		log.Printf("dropping rating event %s for game %s: %v", msg.ID, event.GameID, err)
		return nil
	}
	return err
}

func (c *CounterConsumer) handlePurchase(ctx context.Context, msg mq.Message) error {
	var event PurchaseEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("dropping malformed purchase event %s: %v", msg.ID, err)
		return nil
	}
	if event.GameID == uuid.Nil {
		log.Printf("dropping purchase event %s: missing game_id", msg.ID)
		return nil
	}

	err := c.games.RecordPurchase(ctx, event.GameID)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		if err != nil {
			log.Printf("dropping purchase event %s for unknown game %s", msg.ID, event.GameID)
		}
		return nil
	}
	return err
}
