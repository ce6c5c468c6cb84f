package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-auth/internal/auth"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/middleware"
	"github.com/iliyamo/account-auth/internal/model"
)

// AuthService is what the HTTP layer needs from auth.Service.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Confirmation, error)
	Authenticate(ctx context.Context, email, password string) (model.TokenPair, error)
	ActivateAccount(ctx context.Context, code string) (auth.Confirmation, error)
	RefreshToken(ctx context.Context, raw string) (model.TokenPair, error)
	ResendActivation(ctx context.Context, email string) (auth.Confirmation, error)
	Logout(ctx context.Context, raw string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	Whoami(ctx context.Context, userID string) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc     AuthService
	Log     logging.Logger
	Timeout time.Duration
}

func NewAuthHandler(svc AuthService, log logging.Logger, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{Svc: svc, Log: log, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
type emailReq struct {
	Email string `json:"email"`
}

type messageResp struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}
type tokenResp struct {
	TokenType             string    `json:"tokenType"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
type meResp struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Status    string `json:"status"`
}

func toTokenResp(p model.TokenPair) tokenResp {
	return tokenResp{
		TokenType:             "Bearer",
		AccessToken:           p.AccessToken,
		AccessTokenExpiresAt:  p.AccessExpiresAt,
		RefreshToken:          p.RefreshToken,
		RefreshTokenExpiresAt: p.RefreshExpiresAt,
	}
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorResp{Error: "invalid body", Code: "INVALID_BODY"})
}

// Register: create a PENDING account and mail the activation link.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	conf, err := h.Svc.Register(ctx, auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return h.fail(c, err)
	}
	resp := messageResp{Message: conf.Message}
	if conf.DeliveryErr != nil {
		resp.Warning = "The activation email could not be sent. Request a new one via /auth/resend-activation."
	}
	return c.JSON(http.StatusOK, resp)
}

// Authenticate: verify credentials and return a token pair.
func (h *AuthHandler) Authenticate(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	pair, err := h.Svc.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair))
}

// ActivateAccount: redeem the ?token= activation code.
func (h *AuthHandler) ActivateAccount(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	conf, err := h.Svc.ActivateAccount(ctx, c.QueryParam("token"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: conf.Message})
}

// RefreshToken: rotate the refresh token sent as a Bearer credential.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw, err := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	pair, err := h.Svc.RefreshToken(ctx, raw)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair))
}

// ResendActivation answers the same way whether or not the address belongs
// to a pending account, so it cannot be used to enumerate users.
func (h *AuthHandler) ResendActivation(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.Svc.ResendActivation(ctx, req.Email)
	switch {
	case err == nil,
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrAlreadyActive),
		errors.Is(err, auth.ErrAccountDisabled):
		return c.JSON(http.StatusOK, messageResp{Message: "If the account is awaiting activation, a new activation email has been sent."})
	default:
		return h.fail(c, err)
	}
}

// Logout: revoke the refresh token sent as a Bearer credential.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, err := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, raw); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword: replace the caller's password. Every refresh token of the
// account is revoked, so other devices must sign in again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "Password changed. Sign in again on your other devices."})
}

// Me returns the account behind the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.Whoami(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, meResp{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    string(u.Status),
	})
}
