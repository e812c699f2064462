package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/ratelimit"
)

// maxRequestBodyBytes is the hard cap on request bodies (§6's 10 MiB
// default); requests over this limit are rejected with 413 before the
// handler ever sees the body.
const maxRequestBodyBytes = 10 << 20

// securityHeaders returns middleware that sets the fixed set of response
// headers §6 requires on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// setRateLimitHeaders annotates a response with the X-RateLimit-* headers
// §6 requires on every rate-limited response, win or lose.
func setRateLimitHeaders(c *echo.Context, res ratelimit.Result) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	h.Set("X-RateLimit-Window", res.Window.String())
}

// rateLimited returns middleware that enforces a named rate-limit policy
// against a per-request key derived from keyFn, failing open per §4.2/§7's
// RateLimiterCheckFailed contract (Degraded requests are allowed through).
func (s *Server) rateLimited(policyName string, keyFn func(c *echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			policy, err := s.cfg.GetRateLimitPolicy(policyName)
			if err != nil || s.limiter == nil {
				return next(c)
			}

			res := s.limiter.Check(c.Request().Context(), keyFn(c), int64(policy.Limit), policy.Window)
			setRateLimitHeaders(c, res)
			if !res.Allowed {
				return echo.NewHTTPError(http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
