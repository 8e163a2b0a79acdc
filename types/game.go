package types

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the moderation lifecycle state of a listing.
//
// The expected progression is draft -> under_review -> published ->
// suspended, but transitions are policed by the moderation workflow, not by
// the data layer.
type GameStatus string

const (
	StatusDraft       GameStatus = "draft"
	StatusUnderReview GameStatus = "under_review"
	StatusPublished   GameStatus = "published"
	StatusSuspended   GameStatus = "suspended"
)

// Valid reports whether s is one of the known lifecycle states.
func (s GameStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusPublished, StatusSuspended:
		return true
	}
	return false
}

// Price bounds enforced on every write. Out-of-range values are rejected,
// never clamped.
const (
	MinPrice = 0.0
	MaxPrice = 9999.99
)

// Game represents a catalog listing.
//
// Taxonomy (categories, tags, platforms) and screenshots are stored as array
// columns on the game row. Screenshot order is display order.
type Game struct {
	// ID is the unique identifier of the listing.
	ID uuid.UUID `json:"id" db:"id"`

	// Name is the display name of the game.
	Name string `json:"name" db:"name"`

	// Description is the full store-page description.
	Description string `json:"description" db:"description"`

	// DeveloperID identifies the owning developer account. It is an opaque
	// reference validated by the user service, not a declared foreign key.
	DeveloperID uuid.UUID `json:"developer_id" db:"developer_id"`

	// PublisherID optionally identifies the publishing account.
	PublisherID *uuid.UUID `json:"publisher_id,omitempty" db:"publisher_id"`

	// CoverImage is the object key or URL of the cover image.
	CoverImage string `json:"cover_image" db:"cover_image"`

	// TrailerURL optionally links a trailer video.
	TrailerURL *string `json:"trailer_url,omitempty" db:"trailer_url"`

	// ReleaseDate is the announced or actual release date.
	ReleaseDate time.Time `json:"release_date" db:"release_date"`

	// Price is the listing price. Must be within [MinPrice, MaxPrice].
	Price float64 `json:"price" db:"price"`

	// Status is the moderation lifecycle state. New listings start as draft.
	Status GameStatus `json:"status" db:"status"`

	// Categories, Tags and Platforms classify the listing. Values are
	// normalized and deduplicated before storage.
	Categories []string `json:"categories" db:"categories"`
	Tags       []string `json:"tags" db:"tags"`
	Platforms  []string `json:"platforms" db:"platforms"`

	// Screenshots are object keys or URLs in display order.
	Screenshots []string `json:"screenshots" db:"screenshots"`

	// RatingCount is the number of ratings aggregated into AverageRating.
	// Mutated only by the rating event path.
	RatingCount int `json:"rating_count" db:"rating_count"`

	// AverageRating is the running mean of submitted ratings, in [0, 5].
	AverageRating float64 `json:"average_rating" db:"average_rating"`

	// PurchaseCount is the number of recorded purchases. Mutated only by
	// the purchase event path.
	PurchaseCount int `json:"purchase_count" db:"purchase_count"`

	// CreatedAt is the timestamp at which the listing was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// DeletedAt, when set, marks the listing as soft-deleted. Soft-deleted
	// listings are invisible to every read path unless explicitly requested
	// by an administrator.
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Visible reports whether the listing should appear on default read paths.
func (g Game) Visible() bool {
	return g.DeletedAt == nil
}

// GameUpdate carries a partial update. Nil fields are left untouched; a
// non-nil taxonomy slice replaces the stored values wholesale.
type GameUpdate struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	CoverImage  *string    `json:"cover_image,omitempty"`
	TrailerURL  *string    `json:"trailer_url,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Status      *GameStatus `json:"status,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Platforms   []string   `json:"platforms,omitempty"`
	Screenshots []string   `json:"screenshots,omitempty"`
}

// GameSort selects the ordering of a listing query.
type GameSort string

const (
	SortCreatedAt GameSort = "created_at"
	SortPrice     GameSort = "price"
	SortRating    GameSort = "rating"
	SortRelevance GameSort = "relevance"
)

// GameFilter narrows a listing query. Zero values mean "no constraint".
type GameFilter struct {
	// Status restricts results to a single lifecycle state.
	Status GameStatus

	// MinPrice/MaxPrice bound the listing price when non-nil.
	MinPrice *float64
	MaxPrice *float64

	// Category, Tag and Platform are set-membership filters against the
	// stored taxonomy arrays.
	Category string
	Tag      string
	Platform string

	// Query is a full-text search over the game name.
	Query string

	// IncludeDeleted widens reads to soft-deleted rows. Administrative use
	// only.
	IncludeDeleted bool

	Sort GameSort
	Desc bool
}
