package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-auth/internal/token"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "user_id"

// AccessDecoder verifies access tokens.
type AccessDecoder interface {
	Decode(raw string) (token.Claims, error)
}

// JWTAuth validates the Bearer access token and stores its subject under
// UserIDKey. Validity depends only on signature and expiry.
func JWTAuth(codec AccessDecoder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				code := "MISSING_BEARER_TOKEN"
				if errors.Is(err, ErrMalformedBearer) {
					code = "MALFORMED_BEARER_TOKEN"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error(), "code": code})
			}
			claims, err := codec.Decode(raw)
			if err != nil {
				code := "INVALID_ACCESS_TOKEN"
				if errors.Is(err, token.ErrExpired) {
					code = "ACCESS_TOKEN_EXPIRED"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired access token", "code": code})
			}
			c.Set(UserIDKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID returns the id stored by JWTAuth, or "" on unauthenticated routes.
func UserID(c echo.Context) string {
	s, _ := c.Get(UserIDKey).(string)
	return s
}
