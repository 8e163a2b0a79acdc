package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ex1s9/microservices/internal/services"
	"github.com/Ex1s9/microservices/internal/store"
	"github.com/Ex1s9/microservices/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const releaseDateLayout = "2006-01-02"

// GameHandler provides HTTP handlers for catalog listings.
type GameHandler struct {
	gameService *services.GameService
	userService *services.UserService
}

// NewGameHandler constructs a handler with the provided services.
func NewGameHandler(gameService *services.GameService, userService *services.UserService) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		userService: userService,
	}
}

// GameRouter registers catalog routes on the given router. Reads are public;
// mutations require an authenticated developer.
func GameRouter(
	r chi.Router,
	gameService *services.GameService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewGameHandler(gameService, userService)

	r.Get("/", handler.ListGames)
	r.With(authMiddleware, handler.requireDeveloper).Post("/", handler.CreateGame)
	r.Route("/{gameID}", func(r chi.Router) {
		r.Get("/", handler.GetGame)
		r.With(authMiddleware, handler.requireDeveloper).Put("/", handler.UpdateGame)
		r.With(authMiddleware, handler.requireDeveloper).Delete("/", handler.DeleteGame)
	})
}

// GameAdminRouter registers the administrative read routes that may see
// soft-deleted listings. The caller wires admin-only middleware.
func GameAdminRouter(r chi.Router, gameService *services.GameService, userService *services.UserService) {
	handler := NewGameHandler(gameService, userService)

	r.Get("/", handler.listGames(true))
	r.Get("/{gameID}", handler.getGame(true))
}

// GameUpsertRequest is the JSON payload for creating or updating a listing.
type GameUpsertRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CoverImage  string   `json:"cover_image"`
	TrailerURL  *string  `json:"trailer_url"`
	PublisherID *string  `json:"publisher_id"`
	ReleaseDate string   `json:"release_date"`
	Price       float64  `json:"price"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Platforms   []string `json:"platforms"`
	Screenshots []string `json:"screenshots"`
}

// GameUpdateRequest mirrors GameUpsertRequest with every field optional.
type GameUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	CoverImage  *string  `json:"cover_image"`
	TrailerURL  *string  `json:"trailer_url"`
	ReleaseDate *string  `json:"release_date"`
	Price       *float64 `json:"price"`
	Status      *string  `json:"status"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Platforms   []string `json:"platforms"`
	Screenshots []string `json:"screenshots"`
}

// GameListResponse is the paginated list response payload.
type GameListResponse struct {
	Items []types.Game `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.listGames(false)(w, r)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	h.getGame(false)(w, r)
}

func (h *GameHandler) listGames(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset, err := parsePagination(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		filter, err := parseGameFilter(r, admin)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		items, total, err := h.gameService.List(r.Context(), filter, offset, limit)
		if err != nil {
			writeStoreError(w, err, "game not found", "failed to list games")
			return
		}

		writeJSON(w, http.StatusOK, GameListResponse{
			Items: items,
			Page:  page,
			Limit: limit,
			Total: total,
		})
	}
}

func (h *GameHandler) getGame(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseGameID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		includeDeleted := admin && parseBoolParam(r, "include_deleted")
		game, err := h.gameService.Get(r.Context(), id, includeDeleted)
		if err != nil {
			writeStoreError(w, err, "game not found", "failed to fetch game")
			return
		}

		writeJSON(w, http.StatusOK, game)
	}
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	developerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req GameUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	game := types.Game{
		Name:        req.Name,
		Description: req.Description,
		DeveloperID: developerID,
		CoverImage:  req.CoverImage,
		TrailerURL:  req.TrailerURL,
		Price:       req.Price,
		Categories:  req.Categories,
		Tags:        req.Tags,
		Platforms:   req.Platforms,
		Screenshots: req.Screenshots,
	}

	if req.PublisherID != nil {
		publisherID, err := uuid.Parse(*req.PublisherID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid publisher id")
			return
		}
		game.PublisherID = &publisherID
	}

	if strings.TrimSpace(req.ReleaseDate) != "" {
		releaseDate, err := time.Parse(releaseDateLayout, req.ReleaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid release date")
			return
		}
		game.ReleaseDate = releaseDate
	}

	created, err := h.gameService.Create(r.Context(), game)
	if err != nil {
		writeStoreError(w, err, "game not found", "failed to create game")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req GameUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	existing, err := h.gameService.Get(r.Context(), id, false)
	if err != nil {
		writeStoreError(w, err, "game not found", "failed to fetch game")
		return
	}
	if existing.DeveloperID != caller && !h.isAdmin(r) {
		// Same shape as a missing game, so ownership cannot be probed.
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	upd := types.GameUpdate{
		Name:        req.Name,
		Description: req.Description,
		CoverImage:  req.CoverImage,
		TrailerURL:  req.TrailerURL,
		Price:       req.Price,
		Categories:  req.Categories,
		Tags:        req.Tags,
		Platforms:   req.Platforms,
		Screenshots: req.Screenshots,
	}

	if req.Status != nil {
		status := types.GameStatus(*req.Status)
		upd.Status = &status
	}
	if req.ReleaseDate != nil {
		releaseDate, err := time.Parse(releaseDateLayout, *req.ReleaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid release date")
			return
		}
		upd.ReleaseDate = &releaseDate
	}

	updated, err := h.gameService.Update(r.Context(), id, upd)
	if err != nil {
		writeStoreError(w, err, "game not found", "failed to update game")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteGame soft-deletes a listing on behalf of its owning developer.
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.gameService.SoftDelete(r.Context(), id, caller); err != nil {
		writeStoreError(w, err, "game not found", "failed to delete game")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseGameID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "gameID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid game id")
	}
	return id, nil
}

func parseBoolParam(r *http.Request, name string) bool {
	value, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return value
}

func parseGameFilter(r *http.Request, admin bool) (types.GameFilter, error) {
	query := r.URL.Query()

	filter := types.GameFilter{
		Status:   types.GameStatus(strings.TrimSpace(query.Get("status"))),
		Category: query.Get("category"),
		Tag:      query.Get("tag"),
		Platform: query.Get("platform"),
		Query:    strings.TrimSpace(query.Get("q")),
	}

	if raw := strings.TrimSpace(query.Get("min_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.GameFilter{}, errors.New("invalid min price")
		}
		filter.MinPrice = &price
	}
	if raw := strings.TrimSpace(query.Get("max_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.GameFilter{}, errors.New("invalid max price")
		}
		filter.MaxPrice = &price
	}

	switch strings.TrimSpace(query.Get("sort")) {
	case "", "created_at":
		filter.Sort = types.SortCreatedAt
	case "price":
		filter.Sort = types.SortPrice
	case "rating":
		filter.Sort = types.SortRating
	case "relevance":
		filter.Sort = types.SortRelevance
	default:
		return types.GameFilter{}, errors.New("invalid sort")
	}

	switch strings.TrimSpace(query.Get("order")) {
	case "", "desc":
		filter.Desc = true
	case "asc":
		filter.Desc = false
	default:
		return types.GameFilter{}, errors.New("invalid order")
	}

	if admin {
		filter.IncludeDeleted = parseBoolParam(r, "include_deleted")
	}
	return filter, nil
}

// requireDeveloper admits developers and admins.
func (h *GameHandler) requireDeveloper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		if user.Role != types.RoleDeveloper && user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "developer access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *GameHandler) isAdmin(r *http.Request) bool {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		return false
	}
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		return false
	}
	return user.Role == types.RoleAdmin
}
