package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ex1s9/microservices/internal/store"
	"github.com/Ex1s9/microservices/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	minPasswordLength = 8
	minUsernameLength = 3
	maxUsernameLength = 30
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate, passwordHash *string) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role types.UserRole, offset, limit int) ([]types.User, int, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Create validates the account fields, hashes the password and persists.
// Only the hash is stored. Uniqueness of email and username is left to the
// database so concurrent creates resolve consistently.
func (s *UserService) Create(ctx context.Context, email, username, password string, role types.UserRole) (types.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if err := validateEmail(email); err != nil {
		return types.User{}, err
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return types.User{}, err
	}
	if role == "" {
		role = types.RolePlayer
	}
	if !role.Valid() {
		return types.User{}, &store.ValidationError{Field: "role", Reason: "unknown role"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		Role:         role,
	})
}

// Authenticate verifies a username/password pair and returns the account.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

// Update validates and applies a partial account update, re-hashing the
// password when one is supplied. Role changes are unrestricted here;
// authorization is the caller's concern.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate) (types.User, error) {
	if upd.Email != nil {
		trimmed := strings.TrimSpace(*upd.Email)
		if err := validateEmail(trimmed); err != nil {
			return types.User{}, err
		}
		upd.Email = &trimmed
	}
	if upd.Username != nil {
		trimmed := strings.TrimSpace(*upd.Username)
		if err := validateUsername(trimmed); err != nil {
			return types.User{}, err
		}
		upd.Username = &trimmed
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return types.User{}, &store.ValidationError{Field: "role", Reason: "unknown role"}
	}

	var passwordHash *string
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return types.User{}, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, err
		}
		s := string(hashed)
		passwordHash = &s
	}

	return s.repo.Update(ctx, id, upd, passwordHash)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *UserService) List(ctx context.Context, role types.UserRole, offset, limit int) ([]types.User, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if role != "" && !role.Valid() {
		return nil, 0, &store.ValidationError{Field: "role", Reason: "unknown role"}
	}
	return s.repo.List(ctx, role, offset, limit)
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &store.ValidationError{Field: "email", Reason: "invalid format"}
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return &store.ValidationError{Field: "username", Reason: "must be between 3 and 30 characters"}
	}
	for _, c := range username {
		if !isAlphanumeric(c) && c != '_' {
			return &store.ValidationError{Field: "username", Reason: "only letters, numbers and underscore allowed"}
		}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &store.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
