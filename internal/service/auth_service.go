package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"github.com/quocanhngo/talkhub/pkg/auth"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// BlacklistKey is the Redis key marking a revoked token
func BlacklistKey(token string) string { return "blacklist:" + token }

// AuthService handles authentication business logic
type AuthService struct {
	users      repository.UserRepository
	jwtManager *auth.JWTManager
	rdb        *redis.Client
	now        Clock
}

// NewAuthService builds the service. rdb may be nil, in which case logout
// cannot revoke tokens before they expire.
func NewAuthService(users repository.UserRepository, jwtManager *auth.JWTManager, rdb *redis.Client) *AuthService {
	return &AuthService{
		users:      users,
		jwtManager: jwtManager,
		rdb:        rdb,
		now:        systemClock,
	}
}

// ==================== Register / Login ====================

// Register creates an account and signs the user in
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || len(req.Password) < 6 {
		return nil, apperr.Validation("username, email and a password of at least 6 characters are required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("username already taken")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Infof("User %s registered", user.ID)

	return s.issue(user)
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*model.LoginResponse, error) {
	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// Logout sets the user offline and revokes the token until it expires
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, tokenString string) error {
	if err := s.users.UpdateOnlineStatus(ctx, userID, false, s.now()); err != nil {
		return err
	}

	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return apperr.Unauthorized("invalid token")
	}

	ttl := claims.TTL()
	if ttl == 0 || s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, BlacklistKey(tokenString), "revoked", ttl).Err()
}

// ==================== Profile ====================

// GetProfile returns the current user's profile
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// UpdateProfile changes username, avatar or status
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (*model.UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username != "" {
		existing, err := s.users.FindByUsername(ctx, username)
		if err == nil && existing.ID != userID {
			return nil, apperr.Conflict("username already taken")
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	update := repository.ProfileUpdate{Username: username, AvatarURL: req.AvatarURL, Status: req.Status}
	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}
