package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"messagerie/internal/config"
	"messagerie/internal/domain"
	"messagerie/internal/repository"
	"messagerie/pkg/errors"
	"messagerie/pkg/jwt"
	"messagerie/pkg/logger"
)

// AuthService is the identity provider: it issues tokens on login and
// resolves a connection's token to a stable {id, email} identity.
type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ResolveToken(ctx context.Context, tokenString string) (*domain.Identity, error)
}

type LoginResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.ErrBadRequest
	}
	if len(password) < 8 {
		return nil, errors.ErrBadRequest
	}
	if displayName == "" {
		displayName = email
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, errors.ErrInternalServer
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// do not reveal whether the account exists
		return nil, errors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(user.ID, user.Email, s.jwtCfg.Secret, s.jwtCfg.Issuer, s.jwtCfg.TokenTTL)
	if err != nil {
		s.log.Error("Failed to generate token", "error", err)
		return nil, errors.ErrInternalServer
	}

	user.PasswordHash = ""
	return &LoginResponse{User: user, Token: token}, nil
}

// ResolveToken validates the token and returns the identity it carries. Every
// failure maps to ErrUnauthenticated so callers need no taxonomy of their own.
func (s *authService) ResolveToken(ctx context.Context, tokenString string) (*domain.Identity, error) {
	if tokenString == "" {
		return nil, errors.ErrUnauthenticated
	}

	claims, err := jwt.ParseAccessToken(tokenString, s.jwtCfg.Secret)
	if err != nil {
		return nil, errors.ErrUnauthenticated
	}

	// the account may have been deleted since the token was issued
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.ErrUnauthenticated
	}

	return &domain.Identity{UserID: user.ID, Email: user.Email}, nil
}
