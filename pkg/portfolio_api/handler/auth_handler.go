package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/middleware"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
)

// AuthController binds the auth endpoints to the AuthService.
type AuthController struct {
	Service      *services.AuthService
	CookieSecure bool
}

func NewAuthController(s *services.AuthService, cookieSecure bool) *AuthController {
	return &AuthController{Service: s, CookieSecure: cookieSecure}
}

type LoginResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ProfileResponse struct {
	User models.PublicUser `json:"user"`
}

// Login handles POST /auth/login. The credential is set as an HTTP-only
// cookie and also returned in the body for non-cookie clients.
func (c *AuthController) Login(ctx *gin.Context, body *models.LoginInput) (*LoginResponse, error) {
	user, token, err := c.Service.Login(ctx.Request.Context(), body)
	if err != nil {
		return nil, err
	}
	c.setTokenCookie(ctx, token, int(services.TokenTTL.Seconds()))
	return &LoginResponse{Message: "login successful", User: *user, Token: token}, nil
}

// Logout handles POST /auth/logout. Clears the cookie only; an already
// issued bearer token stays valid until it expires.
func (c *AuthController) Logout(ctx *gin.Context) (*MessageResponse, error) {
	c.setTokenCookie(ctx, "", -1)
	return &MessageResponse{Message: "logged out"}, nil
}

// Profile handles GET /auth/profile from the attached claims, without a
// database round-trip.
func (c *AuthController) Profile(ctx *gin.Context) (*ProfileResponse, error) {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return nil, problem.NewUnauthorized("authentication required")
	}
	return &ProfileResponse{User: models.PublicUser{
		ID:      claims.UserID,
		Email:   claims.Email,
		Name:    claims.Name,
		Role:    claims.Role,
		IsOwner: claims.Owner,
	}}, nil
}

func (c *AuthController) setTokenCookie(ctx *gin.Context, token string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.CookieName, token, maxAge, "/", "", c.CookieSecure, true)
}
