package handlers

import (
	"context"
	"net/http/httptest"
	"slices"
	"sync"
	"time"

	"github.com/Ex1s9/microservices/internal/services"
	"github.com/Ex1s9/microservices/internal/store"
	"github.com/Ex1s9/microservices/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "handler-test-secret"

// memGameRepo is an in-memory services.GameRepository for handler tests.
type memGameRepo struct {
	mu    sync.Mutex
	games map[uuid.UUID]types.Game
}

func newMemGameRepo() *memGameRepo {
	return &memGameRepo{games: make(map[uuid.UUID]types.Game)}
}

func (r *memGameRepo) Create(_ context.Context, game types.Game) (types.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now
	r.games[game.ID] = game
	return game, nil
}

func (r *memGameRepo) Get(_ context.Context, id uuid.UUID, includeDeleted bool) (types.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || (!includeDeleted && !game.Visible()) {
		return types.Game{}, store.ErrNotFound
	}
	return game, nil
}

func (r *memGameRepo) Update(_ context.Context, id uuid.UUID, upd types.GameUpdate) (types.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || !game.Visible() {
		return types.Game{}, store.ErrNotFound
	}
	if upd.Name != nil {
		game.Name = *upd.Name
	}
	if upd.Description != nil {
		game.Description = *upd.Description
	}
	if upd.Price != nil {
		game.Price = *upd.Price
	}
	if upd.Status != nil {
		game.Status = *upd.Status
	}
	if upd.Categories != nil {
		game.Categories = upd.Categories
	}
	if upd.Tags != nil {
		game.Tags = upd.Tags
	}
	if upd.Platforms != nil {
		game.Platforms = upd.Platforms
	}
	if upd.Screenshots != nil {
		game.Screenshots = upd.Screenshots
	}
	game.UpdatedAt = time.Now()
	r.games[id] = game
	return game, nil
}

func (r *memGameRepo) SoftDelete(_ context.Context, id, requester uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || !game.Visible() {
		return store.ErrNotFound
	}
	if game.DeveloperID != requester {
		return store.ErrPermissionDenied
	}
	now := time.Now()
	game.DeletedAt = &now
	r.games[id] = game
	return nil
}

func (r *memGameRepo) List(_ context.Context, filter types.GameFilter, offset, limit int) ([]types.Game, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []types.Game
	for _, game := range r.games {
		if !filter.IncludeDeleted && !game.Visible() {
			continue
		}
		if filter.Status != "" && game.Status != filter.Status {
			continue
		}
		if filter.Category != "" && !slices.Contains(game.Categories, filter.Category) {
			continue
		}
		if filter.Tag != "" && !slices.Contains(game.Tags, filter.Tag) {
			continue
		}
		if filter.Platform != "" && !slices.Contains(game.Platforms, filter.Platform) {
			continue
		}
		matched = append(matched, game)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memGameRepo) ApplyRating(_ context.Context, id uuid.UUID, rating float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || !game.Visible() {
		return store.ErrNotFound
	}
	game.AverageRating = (game.AverageRating*float64(game.RatingCount) + rating) / float64(game.RatingCount+1)
	game.RatingCount++
	r.games[id] = game
	return nil
}

func (r *memGameRepo) RecordPurchase(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || !game.Visible() {
		return store.ErrNotFound
	}
	game.PurchaseCount++
	r.games[id] = game
	return nil
}

// memUserRepo is an in-memory services.UserRepository for handler tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]types.User)}
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, &store.ConflictError{Field: "email"}
		}
		if existing.Username == user.Username {
			return types.User{}, &store.ConflictError{Field: "username"}
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, id uuid.UUID, upd types.UserUpdate, passwordHash *string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Username != nil {
		user.Username = *upd.Username
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return user, nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context, role types.UserRole, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []types.User
	for _, user := range r.users {
		if role != "" && user.Role != role {
			continue
		}
		matched = append(matched, user)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// newTestServer wires the real routers over the in-memory repos, mirroring
// the production route layout.
func newTestServer() (*httptest.Server, *memGameRepo, *memUserRepo) {
	gameRepo := newMemGameRepo()
	userRepo := newMemUserRepo()
	gameService := services.NewGameService(gameRepo)
	userService := services.NewUserService(userRepo)
	authMiddleware := RequireAuth(testJWTSecret)

	router := chi.NewRouter()
	router.Route("/games", func(r chi.Router) {
		GameRouter(r, gameService, userService, authMiddleware)
	})
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testJWTSecret)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(authMiddleware, AdminOnly(userService))
		r.Route("/games", func(r chi.Router) {
			GameAdminRouter(r, gameService, userService)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, userService)
		})
	})

	return httptest.NewServer(router), gameRepo, userRepo
}
