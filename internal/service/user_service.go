package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"feedpress/internal/domain"
	"feedpress/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminExists is returned when setup runs after an admin was already created.
	ErrAdminExists = errors.New("admin already exists")
)

// UserService describes user lifecycle operations.
type UserService interface {
	// Setup creates the initial admin account from configured defaults. It
	// succeeds at most once per database.
	Setup(ctx context.Context) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users         repository.UserRepository
	adminUsername string
	adminPassword string
}

func NewUserService(users repository.UserRepository, adminUsername, adminPassword string) UserService {
	return &userService{
		users:         users,
		adminUsername: strings.TrimSpace(adminUsername),
		adminPassword: adminPassword,
	}
}

func (s *userService) Setup(ctx context.Context) (*domain.User, error) {
	_, err := s.users.GetByRole(ctx, domain.RoleAdmin)
	if err == nil {
		return nil, ErrAdminExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if s.adminUsername == "" || s.adminPassword == "" {
		return nil, errors.New("admin credentials are not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     s.adminUsername,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// sanitizeUser strips secret material before a user leaves the service.
func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
