package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are infrastructure endpoints reachable without credentials:
// liveness, database health and the Prometheus scrape target. Everything
// under /api/v1, the websocket included, requires an identity.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper reports whether a request may skip authentication. Pass it as
// JWTConfig.Skipper. It matches on the route template, so it only applies
// once echo has routed the request.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is one of the public endpoints.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
