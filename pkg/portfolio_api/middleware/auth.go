package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
)

// CookieName is the HTTP-only cookie carrying the credential.
const CookieName = "token"

const claimsKey = "auth_claims"

// Claims are the identity assertions embedded in a credential.
type Claims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Owner  bool   `json:"is_owner"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the credential grants elevated access.
func (c *Claims) IsAdmin() bool { return c.Role == "admin" || c.Owner }

// IsOwner reports whether the credential belongs to the site owner.
func (c *Claims) IsOwner() bool { return c.Owner }

// ParseToken verifies the signature and expiry of a credential and returns
// its claims.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// extractToken looks for the credential in the token cookie first, then in
// the Authorization header.
func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authenticate extracts and verifies the credential, attaching the claims on
// success. On failure the request is aborted with the matching problem and
// the chain must not continue.
func authenticate(c *gin.Context, secret []byte) (*Claims, bool) {
	tokenStr := extractToken(c)
	if tokenStr == "" {
		abortProblem(c, problem.NewUnauthorized("authentication required"))
		return nil, false
	}
	claims, err := ParseToken(tokenStr, secret)
	if err != nil {
		abortProblem(c, problem.NewForbidden("token", "invalid or expired token"))
		return nil, false
	}
	c.Set(claimsKey, claims)
	return claims, true
}

// RequireAuth rejects requests without a valid credential and attaches the
// decoded claims for ClaimsFrom.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, secret); !ok {
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireAuth plus the admin predicate. The predicate is
// checked before the rest of the chain runs; a non-admin credential never
// reaches the handler.
func RequireAdmin(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, secret)
		if !ok {
			return
		}
		if !claims.IsAdmin() {
			abortProblem(c, problem.NewForbidden("role", "admin access required"))
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims attached by RequireAuth. Handlers read the
// caller's identity through this accessor only.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func abortProblem(c *gin.Context, apiErr problem.APIError) {
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}
