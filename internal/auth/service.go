package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bsc-invest-platform/internal/database"
)

// Service handles registration, login and token refresh
type Service struct {
	repo            *database.Repository
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	logger          zerolog.Logger
}

// NewService creates a new auth service
func NewService(repo *database.Repository, jwtManager *JWTManager, logger zerolog.Logger) *Service {
	return &Service{
		repo:            repo,
		jwtManager:      jwtManager,
		passwordManager: NewPasswordManager(),
		logger:          logger.With().Str("component", "auth").Logger(),
	}
}

func userResponse(p *database.Profile) UserResponse {
	return UserResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		Name:      p.Name,
		IsAdmin:   p.IsAdmin,
		CreatedAt: p.CreatedAt,
	}
}

func claimsFor(p *database.Profile) UserClaims {
	return UserClaims{
		UserID:  p.ID.String(),
		Email:   p.Email,
		IsAdmin: p.IsAdmin,
	}
}

// Register creates a new user account and returns a token pair
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.passwordManager.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetProfileByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &database.Profile{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		ReferralCode: newReferralCode(),
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, database.ErrProfileExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Info().Str("user_id", profile.ID.String()).Msg("user registered")

	return s.loginResponse(profile)
}

// Login authenticates a user and returns a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	profile, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrProfileMissing) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, profile.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info().Str("user_id", profile.ID.String()).Msg("user logged in")

	return s.loginResponse(profile)
}

// Refresh exchanges a valid refresh token for a new token pair.
// Claims are reloaded from the database so admin changes take effect.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrProfileMissing) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return s.loginResponse(profile)
}

// GetMe returns the authenticated user's profile
func (s *Service) GetMe(ctx context.Context, userID string) (*UserResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrProfileMissing) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	resp := userResponse(profile)
	return &resp, nil
}

func (s *Service) loginResponse(profile *database.Profile) (*LoginResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(profile))
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &LoginResponse{
		User:         userResponse(profile),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
