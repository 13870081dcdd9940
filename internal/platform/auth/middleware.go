package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// DevUserHeader lets local clients pick the acting user when auth is disabled.
const DevUserHeader = "X-Dev-User-ID"

var ErrNoIdentity = errors.New("no authenticated user")

// Claims is the bearer token payload. Subject carries the portal user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"preferred_username,omitempty"`
	Roles    []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation; development and tests only.
	SigningKey []byte
	// Skipper bypasses authentication for matching requests.
	Skipper func(c echo.Context) bool
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket upgrade, so ?access_token= is accepted as a fallback there.
func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		if tok := c.QueryParam("access_token"); tok != "" && c.IsWebSocket() {
			return tok, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(token), nil
}

// ErrNoKeySource is returned by JWTMiddleware when cfg names neither a signing
// key, a JWKS URL nor an issuer to discover one from.
var ErrNoKeySource = errors.New("auth: signing key, JWKS URL or issuer is required")

// JWTMiddleware validates bearer tokens. Without a signing key, RS256 keys come
// from JWKSURL, discovered from the issuer when unset. Discovery runs once here
// and its failure is returned.
func JWTMiddleware(cfg JWTConfig) (echo.MiddlewareFunc, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var keyfunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
		keyfunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{"RS256"}))
		url := cfg.JWKSURL
		if url == "" {
			if cfg.Issuer == "" {
				return nil, ErrNoKeySource
			}
			discovered, err := DiscoverJWKSURL(cfg.Issuer)
			if err != nil {
				return nil, fmt.Errorf("auth: discover JWKS for %s: %w", cfg.Issuer, err)
			}
			url = discovered
		}
		keyfunc = NewJWKSCache(url, defaultJWKSCacheTTL).Keyfunc()
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenStr, claims, keyfunc)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if _, err := uuid.Parse(claims.Subject); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token subject is not a user id")
			}

			ctx := WithIdentity(c.Request().Context(), claims.Subject, claims.Roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}, nil
}

// DevAuthMiddleware accepts unauthenticated requests in development. The
// acting user comes from DevUserHeader or falls back to defaultUser. A request
// that does carry a bearer token is validated with cfg as usual, and rejected
// when cfg has no key source at all.
func DevAuthMiddleware(cfg JWTConfig, defaultUser uuid.UUID) (echo.MiddlewareFunc, error) {
	jwtMW, err := JWTMiddleware(cfg)
	if errors.Is(err, ErrNoKeySource) {
		jwtMW = func(echo.HandlerFunc) echo.HandlerFunc {
			return func(echo.Context) error {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
		}
	} else if err != nil {
		return nil, err
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withJWT := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return withJWT(c)
			}
			user := defaultUser
			if h := c.Request().Header.Get(DevUserHeader); h != "" {
				id, err := uuid.Parse(h)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid "+DevUserHeader)
				}
				user = id
			}
			ctx := WithIdentity(c.Request().Context(), user.String(), []string{RoleAdmin})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}, nil
}

// WithIdentity stores the acting user on ctx.
func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// ActorID returns the authenticated user as a UUID.
func ActorID(ctx context.Context) (uuid.UUID, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return uuid.Nil, ErrNoIdentity
	}
	return uuid.Parse(uid)
}
