package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/auth"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

func toUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Username:    u.Username,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}
	if u.LastLoginAt.Valid {
		t := u.LastLoginAt.Time
		resp.LastLoginAt = &t
	}
	return resp
}

func toTokenResponse(pair *auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}
}

// registerHandler handles POST /auth/register.
func (s *Server) registerHandler(c *echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	user, tokens, err := s.auth.Register(c.Request().Context(), auth.RegisterInput{
		TenantSlug: req.TenantSlug,
		TenantName: req.TenantName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
	})
	if err != nil {
		return mapError(err)
	}

	resp := toTokenResponse(tokens)
	c.Response().Header().Set("X-User-ID", user.ID.String())
	return c.JSON(http.StatusCreated, resp)
}

// loginHandler handles POST /auth/login. Rate-limited 5/300s per §8's S3.
func (s *Server) loginHandler(c *echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	tokens, err := s.auth.Login(c.Request().Context(), auth.LoginInput{
		TenantSlug: req.TenantSlug,
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toTokenResponse(tokens))
}

// refreshHandler handles POST /auth/refresh: rotates the access token only.
func (s *Server) refreshHandler(c *echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	accessToken, expiresAt, err := s.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken, ExpiresAt: expiresAt})
}

// logoutHandler handles POST /auth/logout: blacklists the authenticating
// token's JTI. Runs behind s.authenticate, so the identity's JTI is always
// the one being logged out.
func (s *Server) logoutHandler(c *echo.Context) error {
	token := bearerToken(c.Request())
	claims, err := s.auth.ValidateToken(c.Request().Context(), token)
	if err != nil {
		return mapError(err)
	}

	if err := s.auth.Logout(c.Request().Context(), claims); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// meHandler handles GET /auth/me.
func (s *Server) meHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	user, err := s.auth.Me(c.Request().Context(), identity.UserID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// validateTokenHandler handles POST /auth/validate-token.
func (s *Server) validateTokenHandler(c *echo.Context) error {
	var req validateTokenRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	claims, err := s.auth.ValidateToken(c.Request().Context(), req.Token)
	if err != nil {
		return mapError(err)
	}

	userID, err := parseUUID(claims.Subject)
	if err != nil {
		return mapError(apperr.New(apperr.KindUnauthorized, "malformed token subject"))
	}

	return c.JSON(http.StatusOK, validateTokenResponse{Valid: true, UserID: userID, TenantID: claims.TenantID})
}

// blacklistStatsHandler handles GET /auth/blacklist/stats. Superuser-only.
func (s *Server) blacklistStatsHandler(c *echo.Context) error {
	count, err := s.auth.BlacklistStats(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, blacklistStatsResponse{RevokedCount: count})
}
