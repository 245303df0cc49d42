package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORS allow-lists sent on every response and on preflights.
var (
	AllowedMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}
	AllowedHeaders = []string{
		"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin",
		"Stripe-Signature", "X-Webflow-Signature", "X-Webflow-Timestamp",
	}
)

// PreflightMaxAge is sent as Access-Control-Max-Age.
const PreflightMaxAge = 86400

// ContentSecurityPolicy is sent on every response.
const ContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://js.stripe.com; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; " +
	"connect-src 'self' https://api.webflow.com https://api.stripe.com; " +
	"frame-src https://js.stripe.com https://hooks.stripe.com; " +
	"frame-ancestors 'self' https://*.webflow.com https://webflow.com; " +
	"base-uri 'self'; form-action 'self'"

var (
	allowMethodsValue = strings.Join(AllowedMethods, ", ")
	allowHeadersValue = strings.Join(AllowedHeaders, ", ")
)

// SecurityHeaders sets the CSP, hardening and CORS headers. Headers are set,
// not added, so they appear exactly once however many times this runs.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			applySecurityHeaders(c)
			return next(c)
		}
	}
}

func applySecurityHeaders(c echo.Context) {
	h := c.Response().Header()

	h.Set("Content-Security-Policy", ContentSecurityPolicy)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

	origin := c.Request().Header.Get(echo.HeaderOrigin)
	if origin == "" {
		origin = "*"
	} else {
		h.Set(echo.HeaderVary, echo.HeaderOrigin)
	}
	h.Set(echo.HeaderAccessControlAllowOrigin, origin)
	h.Set(echo.HeaderAccessControlAllowMethods, allowMethodsValue)
	h.Set(echo.HeaderAccessControlAllowHeaders, allowHeadersValue)
	if origin != "*" {
		h.Set(echo.HeaderAccessControlAllowCredentials, "true")
	}
}

// Preflight answers every OPTIONS request with 204 before routing.
// Register it with Echo.Pre.
func Preflight() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodOptions {
				return next(c)
			}

			applySecurityHeaders(c)
			c.Response().Header().Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(PreflightMaxAge))

			return c.NoContent(http.StatusNoContent)
		}
	}
}
