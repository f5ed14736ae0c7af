package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/middleware"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
)

// TokenTTL is the fixed credential lifetime. There is no server-side
// revocation; expiry is the only termination mechanism.
const TokenTTL = 24 * time.Hour

// AuthService checks passwords and mints credentials.
type AuthService struct {
	users  *repositories.Store[models.User]
	secret []byte
}

func NewAuthService(users *repositories.Store[models.User], secret []byte) *AuthService {
	return &AuthService{users: users, secret: secret}
}

// Login verifies email+password and returns the public user plus a signed
// credential. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *AuthService) Login(ctx context.Context, input *models.LoginInput) (*models.PublicUser, string, error) {
	user, err := s.users.FindOne(ctx, map[string]any{"email": input.Email})
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", problem.NewUnauthorized("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, "", problem.NewUnauthorized("invalid email or password")
	}
	token, err := s.MintToken(user)
	if err != nil {
		return nil, "", err
	}
	pub := user.Public()
	return &pub, token, nil
}

// MintToken signs a credential embedding the user's identity claims.
func (s *AuthService) MintToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		Owner:  user.IsOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// EnsureOwner seeds the owner account when no user exists yet. Called once
// at startup; a no-op on populated databases or when the env vars are unset.
func (s *AuthService) EnsureOwner(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	populated, err := s.users.Exists(ctx, nil)
	if err != nil {
		return err
	}
	if populated {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         "admin",
		IsOwner:      true,
	})
}
