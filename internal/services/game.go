package services

import (
	"context"
	"strings"

	"github.com/Ex1s9/microservices/internal/store"
	"github.com/Ex1s9/microservices/types"
	"github.com/google/uuid"
)

// GameRepository defines persistence operations for catalog listings.
type GameRepository interface {
	Create(ctx context.Context, game types.Game) (types.Game, error)
	Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (types.Game, error)
	Update(ctx context.Context, id uuid.UUID, upd types.GameUpdate) (types.Game, error)
	SoftDelete(ctx context.Context, id, requester uuid.UUID) error
	List(ctx context.Context, filter types.GameFilter, offset, limit int) ([]types.Game, int, error)
	ApplyRating(ctx context.Context, id uuid.UUID, rating float64) error
	RecordPurchase(ctx context.Context, id uuid.UUID) error
}

// GameService encapsulates catalog use-cases.
type GameService struct {
	repo GameRepository
}

func NewGameService(repo GameRepository) *GameService {
	return &GameService{repo: repo}
}

// Create validates and persists a new listing. Listings always start in
// draft regardless of the submitted status.
func (s *GameService) Create(ctx context.Context, game types.Game) (types.Game, error) {
	game.Name = strings.TrimSpace(game.Name)
	game.Description = strings.TrimSpace(game.Description)
	game.CoverImage = strings.TrimSpace(game.CoverImage)

	if game.Name == "" {
		return types.Game{}, &store.ValidationError{Field: "name", Reason: "required"}
	}
	if game.Description == "" {
		return types.Game{}, &store.ValidationError{Field: "description", Reason: "required"}
	}
	if game.CoverImage == "" {
		return types.Game{}, &store.ValidationError{Field: "cover_image", Reason: "required"}
	}
	if game.DeveloperID == uuid.Nil {
		return types.Game{}, &store.ValidationError{Field: "developer_id", Reason: "required"}
	}
	if err := validatePrice(game.Price); err != nil {
		return types.Game{}, err
	}

	game.ID = uuid.New()
	game.Status = types.StatusDraft
	game.Categories = normalizeTaxonomy(game.Categories)
	game.Tags = normalizeTaxonomy(game.Tags)
	game.Platforms = normalizeTaxonomy(game.Platforms)
	game.Screenshots = normalizeURLs(game.Screenshots)
	game.RatingCount = 0
	game.AverageRating = 0
	game.PurchaseCount = 0
	game.DeletedAt = nil

	return s.repo.Create(ctx, game)
}

func (s *GameService) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (types.Game, error) {
	return s.repo.Get(ctx, id, includeDeleted)
}

// Update validates and applies a partial update. A supplied taxonomy array
// replaces the stored values wholesale.
func (s *GameService) Update(ctx context.Context, id uuid.UUID, upd types.GameUpdate) (types.Game, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return types.Game{}, &store.ValidationError{Field: "name", Reason: "required"}
	}
	if upd.Description != nil && strings.TrimSpace(*upd.Description) == "" {
		return types.Game{}, &store.ValidationError{Field: "description", Reason: "required"}
	}
	if upd.CoverImage != nil && strings.TrimSpace(*upd.CoverImage) == "" {
		return types.Game{}, &store.ValidationError{Field: "cover_image", Reason: "required"}
	}
	if upd.Price != nil {
		if err := validatePrice(*upd.Price); err != nil {
			return types.Game{}, err
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return types.Game{}, &store.ValidationError{Field: "status", Reason: "unknown status"}
	}

	if upd.Categories != nil {
		upd.Categories = normalizeTaxonomy(upd.Categories)
	}
	if upd.Tags != nil {
		upd.Tags = normalizeTaxonomy(upd.Tags)
	}
	if upd.Platforms != nil {
		upd.Platforms = normalizeTaxonomy(upd.Platforms)
	}
	if upd.Screenshots != nil {
		upd.Screenshots = normalizeURLs(upd.Screenshots)
	}

	return s.repo.Update(ctx, id, upd)
}

// SoftDelete marks a listing deleted on behalf of the requesting developer.
func (s *GameService) SoftDelete(ctx context.Context, id, requester uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id, requester)
}

func (s *GameService) List(ctx context.Context, filter types.GameFilter, offset, limit int) ([]types.Game, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, &store.ValidationError{Field: "status", Reason: "unknown status"}
	}
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Tag = strings.TrimSpace(filter.Tag)
	filter.Platform = strings.TrimSpace(filter.Platform)
	return s.repo.List(ctx, filter, offset, limit)
}

// ApplyRating folds one rating into the listing's aggregate counters.
func (s *GameService) ApplyRating(ctx context.Context, id uuid.UUID, rating float64) error {
	if rating < 0 || rating > 5 {
		return &store.ValidationError{Field: "rating", Reason: "must be between 0 and 5"}
	}
	return s.repo.ApplyRating(ctx, id, rating)
}

// RecordPurchase increments the listing's purchase counter.
func (s *GameService) RecordPurchase(ctx context.Context, id uuid.UUID) error {
	return s.repo.RecordPurchase(ctx, id)
}

func validatePrice(price float64) error {
	if price < types.MinPrice || price > types.MaxPrice {
		return &store.ValidationError{Field: "price", Reason: "must be between 0 and 9999.99"}
	}
	return nil
}

// normalizeTaxonomy trims and deduplicates taxonomy values while preserving
// first-seen order. Arrays carry no uniqueness constraint, so this is the
// single place duplicates are shed.
func normalizeTaxonomy(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// normalizeURLs trims screenshot references and drops empties, keeping the
// submitted display order.
func normalizeURLs(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
