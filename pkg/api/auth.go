package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/auth"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// bearerToken extracts the token from a standard "Authorization: Bearer
// <token>" header, returning "" if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// authenticate requires a valid, non-blacklisted access token and attaches
// the resolved identity to the request context via tenantctx.WithIdentity.
// Every protected route runs through this — it is the one path §6's
// AuthRequired/AuthFailed errors surface from.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return mapError(apperr.New(apperr.KindUnauthorized, "missing bearer token"))
		}

		claims, err := s.auth.ValidateToken(c.Request().Context(), token)
		if err != nil {
			return mapError(err)
		}
		if claims.Type != auth.TokenAccess {
			return mapError(apperr.New(apperr.KindUnauthorized, "a refresh token cannot be used to authenticate a request"))
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return mapError(apperr.New(apperr.KindUnauthorized, "malformed token subject"))
		}

		user, err := s.auth.Me(c.Request().Context(), userID)
		if err != nil {
			return mapError(err)
		}

		ctx := tenantctx.WithIdentity(c.Request().Context(), tenantctx.Identity{
			TenantID:    claims.TenantID,
			UserID:      userID,
			JTI:         claims.ID,
			IsSuperuser: user.IsSuperuser,
		})
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requireSuperuser gates a route to superuser accounts, used by the
// blacklist-stats endpoint. Must run after authenticate.
func requireSuperuser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		identity, ok := tenantctx.FromContext(c.Request().Context())
		if !ok || !identity.IsSuperuser {
			return mapError(apperr.New(apperr.KindForbidden, "superuser access required"))
		}
		return next(c)
	}
}

// requireProjectPermission gates a route to callers whose role within the
// addressed project (per §4.1's role model) carries the given permission.
// A caller with no membership row is forbidden, the same as one with an
// insufficient role — neither is distinguished in the response, consistent
// with §8's S5 cross-tenant-denial posture at the project level.
func (s *Server) requireProjectPermission(perm tenantctx.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			identity, ok := tenantctx.FromContext(c.Request().Context())
			if !ok {
				return mapError(apperr.New(apperr.KindUnauthorized, "authentication required"))
			}

			projectID, err := uuid.Parse(c.Param("id"))
			if err != nil {
				return mapError(apperr.Validation("id", "invalid project id"))
			}

			role, err := s.projects.MemberRole(c.Request().Context(), identity.TenantID, projectID, identity.UserID)
			if err != nil {
				return mapError(err)
			}
			if !tenantctx.Has(tenantctx.PermissionsFor(role), perm) {
				return mapError(apperr.New(apperr.KindForbidden, "insufficient permissions for this project"))
			}
			return next(c)
		}
	}
}
