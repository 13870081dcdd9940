package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for a JSON API that carries patient
// correspondence.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// No MIME sniffing of JSON bodies.
			h.Set("X-Content-Type-Options", "nosniff")

			// Responses are never framed.
			h.Set("X-Frame-Options", "DENY")

			// Nothing is loaded or embedded from an API response.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// One year, subdomains included.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Message URLs carry ids; keep them out of Referer.
			h.Set("Referrer-Policy", "no-referrer")

			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Message bodies must never land in shared caches.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
