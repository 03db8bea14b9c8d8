package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"messagerie/internal/config"
	"messagerie/internal/domain"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return errors.ErrUserAlreadyExists
	}
	stored := *user
	r.byEmail[user.Email] = &stored
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *fakeUserRepo) delete(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEmail, email)
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
		Issuer:   "messagerie-test",
	}
}

func newAuthService(repo *fakeUserRepo) AuthService {
	return NewAuthService(repo, testJWTConfig(), logger.New("error"))
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	req := require.New(t)
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	user, err := svc.Register(context.Background(), "  Alice@Example.COM ", "password123", "Alice")
	req.NoError(err)
	req.Equal("alice@example.com", user.Email)
	req.Empty(user.PasswordHash, "hash must not leak in the response")

	stored, err := repo.GetByEmail(context.Background(), "alice@example.com")
	req.NoError(err)
	req.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	req := require.New(t)
	svc := newAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), "", "password123", "x")
	req.ErrorIs(err, errors.ErrBadRequest)

	_, err = svc.Register(context.Background(), "not-an-email", "password123", "x")
	req.ErrorIs(err, errors.ErrBadRequest)

	_, err = svc.Register(context.Background(), "a@b.com", "short", "x")
	req.ErrorIs(err, errors.ErrBadRequest)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	req := require.New(t)
	svc := newAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), "alice@example.com", "password123", "Alice")
	req.NoError(err)
	_, err = svc.Register(context.Background(), "alice@example.com", "password123", "Alice")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	req := require.New(t)
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	registered, err := svc.Register(context.Background(), "alice@example.com", "password123", "Alice")
	req.NoError(err)

	resp, err := svc.Login(context.Background(), "alice@example.com", "password123")
	req.NoError(err)
	req.NotEmpty(resp.Token)
	req.Empty(resp.User.PasswordHash)

	identity, err := svc.ResolveToken(context.Background(), resp.Token)
	req.NoError(err)
	req.Equal(registered.ID, identity.UserID)
	req.Equal("alice@example.com", identity.Email)
}

func TestLoginInvalidCredentials(t *testing.T) {
	req := require.New(t)
	svc := newAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), "alice@example.com", "password123", "Alice")
	req.NoError(err)

	_, err = svc.Login(context.Background(), "alice@example.com", "wrong-password")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	// unknown account reports the same error as a wrong password
	_, err = svc.Login(context.Background(), "nobody@example.com", "password123")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestResolveTokenFailures(t *testing.T) {
	req := require.New(t)
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	_, err := svc.ResolveToken(context.Background(), "")
	req.ErrorIs(err, errors.ErrUnauthenticated)

	_, err = svc.ResolveToken(context.Background(), "not.a.token")
	req.ErrorIs(err, errors.ErrUnauthenticated)

	// a valid token for a since-deleted account no longer resolves
	_, err = svc.Register(context.Background(), "gone@example.com", "password123", "Gone")
	req.NoError(err)
	resp, err := svc.Login(context.Background(), "gone@example.com", "password123")
	req.NoError(err)
	repo.delete("gone@example.com")

	_, err = svc.ResolveToken(context.Background(), resp.Token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
}
