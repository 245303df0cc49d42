package middleware

import (
	"net/http"

	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/ratelimit"
	"github.com/contrastkit/contrastkit/log"
	"github.com/labstack/echo/v4"
)

// UnknownClient is the rate limit key for requests without X-Forwarded-For.
const UnknownClient = "unknown"

// RateLimitKey is the raw X-Forwarded-For value, or UnknownClient.
func RateLimitKey(c echo.Context) string {
	if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
		return xff
	}

	return UnknownClient
}

// RateLimit rejects requests over the limit with 429 before the handler
// runs. Paths in exempt, matched on the exact request path, are not counted.
// Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, exempt []string, logger log.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip[c.Request().URL.Path] || c.Request().Method == http.MethodOptions {
				return next(c)
			}

			key := RateLimitKey(c)
			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Error(c.Request().Context(), "Rate limiter failed, allowing request", err, log.Fields{"client": key})
				return next(c)
			}

			if !allowed {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.Warn(c.Request().Context(), "Rate limit exceeded", log.Fields{
					"client": key,
					"path":   c.Request().URL.Path,
				})

				return c.JSON(http.StatusTooManyRequests, apierrors.TooManyRequests())
			}

			return next(c)
		}
	}
}
