package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-auth/internal/auth"
	"github.com/iliyamo/account-auth/internal/middleware"
)

type errorResp struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusOf maps a service error to its HTTP status and machine-readable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrDuplicateAccount):
		return http.StatusConflict, "DUPLICATE_ACCOUNT"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "AUTHENTICATION_FAILED"
	case errors.Is(err, auth.ErrAccountNotActivated):
		return http.StatusUnauthorized, "ACCOUNT_NOT_ACTIVATED"
	case errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusUnauthorized, "ACCOUNT_DISABLED"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest, "INVALID_TOKEN"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusBadRequest, "TOKEN_EXPIRED"
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED"
	case errors.Is(err, auth.ErrDeliveryFailed):
		return http.StatusBadGateway, "DELIVERY_FAILED"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, middleware.ErrMissingBearer):
		return http.StatusBadRequest, "MISSING_BEARER_TOKEN"
	case errors.Is(err, middleware.ErrMalformedBearer):
		return http.StatusBadRequest, "MALFORMED_BEARER_TOKEN"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// fail writes err as a JSON error body. Internal errors are logged and
// replaced by a generic message.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	var ve *auth.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, errorResp{Error: "validation failed", Code: "VALIDATION_ERROR", Fields: ve.Fields})
	}
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		h.Log.Error(c.Request().Context(), "request failed", "path", c.Path(), "err", err)
		return c.JSON(status, errorResp{Error: "internal server error", Code: code})
	}
	return c.JSON(status, errorResp{Error: err.Error(), Code: code})
}
