// Package credentials contains password hashing and token issuance.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/picstream/picstream/internal/entities"
	"github.com/picstream/picstream/internal/storage"
)

// ErrUnauthorized is returned on bad credentials or an invalid token.
var ErrUnauthorized = errors.New("unauthorized")

// Service registers users and issues and verifies bearer tokens. Token
// verification is stateless, there is no revocation list.
type Service struct {
	s      storage.Storage
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// New creates new instance of Service.
func New(s storage.Storage, secret []byte, ttl time.Duration) *Service {
	return &Service{
		s:      s,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register hashes the password and creates a user with the default profile
// image. storage.ErrConflict is returned when the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (*entities.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.s.CreateUser(ctx, &storage.CreateUserParams{
		Username:       username,
		HashedPassword: string(hash),
		ProfileImage:   entities.DefaultProfileImage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// Authenticate checks the username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	u, err := s.s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	return u, nil
}

// IssueToken produces a signed expiring token with the username as subject.
func (s *Service) IssueToken(u *entities.User) (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ResolveToken verifies a token and resolves its subject to a user.
// ErrUnauthorized is returned on a bad signature, an expired token or a
// subject which no longer exists.
func (s *Service) ResolveToken(ctx context.Context, token string) (*entities.User, error) {
	var claims jwt.RegisteredClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	u, err := s.s.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}
