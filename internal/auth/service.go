// Package auth implements account registration, login, activation and
// refresh-token rotation on top of a credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/account-auth/internal/activation"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/model"
	"github.com/iliyamo/account-auth/internal/repository"
	"github.com/iliyamo/account-auth/internal/token"
)

// CredentialStore persists users and their tokens. ConsumeActivationToken
// and RotateRefreshToken must be atomic: they return repository.ErrConflict
// when the row is no longer in the expected state.
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	FindUserByID(ctx context.Context, id string) (model.User, error)
	CreateUser(ctx context.Context, u model.User, first model.ActivationToken) error
	SetUserStatus(ctx context.Context, id string, status model.UserStatus, now time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error

	IssueActivationToken(ctx context.Context, t model.ActivationToken) error
	FindActivationToken(ctx context.Context, codeHash string) (model.ActivationToken, error)
	ConsumeActivationToken(ctx context.Context, tokenID string, now time.Time) error

	StoreRefreshToken(ctx context.Context, t model.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID string, next model.RefreshToken, now time.Time) error
	RevokeRefreshToken(ctx context.Context, id string, now time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)
}

// Notifier delivers an activation code to the account owner.
type Notifier interface {
	SendActivation(ctx context.Context, email, code string, expiresAt time.Time) error
}

// AccessIssuer signs access tokens.
type AccessIssuer interface {
	Encode(userID string, now time.Time) (token.AccessToken, error)
}

// PasswordHasher hashes and checks passwords, bounding CPU use.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, encoded, plain string) (bool, error)
	VerifyDummy(ctx context.Context, plain string)
}

// Confirmation is the user-facing outcome of register, activate and resend.
// DeliveryErr is set when the account was created but the activation email
// did not go out; it wraps ErrDeliveryFailed.
type Confirmation struct {
	Message     string
	DeliveryErr error
}

type Deps struct {
	Store    CredentialStore
	Tokens   AccessIssuer
	Hasher   PasswordHasher
	Notifier Notifier
	Logger   logging.Logger

	ActivationTTL time.Duration
	RefreshTTL    time.Duration
	NotifyTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store       CredentialStore
	tokens      AccessIssuer
	hasher      PasswordHasher
	notifier    Notifier
	log         logging.Logger
	activations *activation.Manager

	refreshTTL    time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = 5 * time.Second
	}
	if d.ActivationTTL <= 0 {
		d.ActivationTTL = 24 * time.Hour
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:         d.Store,
		tokens:        d.Tokens,
		hasher:        d.Hasher,
		notifier:      d.Notifier,
		log:           d.Logger.With("component", "auth"),
		activations:   activation.NewManager(d.Store, d.ActivationTTL, d.Now),
		refreshTTL:    d.RefreshTTL,
		notifyTimeout: d.NotifyTimeout,
		now:           d.Now,
	}
}

// Register creates a PENDING account with its first activation code and
// mails the code. A delivery failure does not undo the account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Confirmation, error) {
	if err := in.validate(); err != nil {
		return Confirmation{}, err
	}
	email := normalizeEmail(in.Email)

	_, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return Confirmation{}, ErrDuplicateAccount
	case !errors.Is(err, repository.ErrNotFound):
		return Confirmation{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return Confirmation{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	code, first, err := s.activations.New(u.ID, now)
	if err != nil {
		return Confirmation{}, err
	}
	// The unique index decides between concurrent registrations.
	if err := s.store.CreateUser(ctx, u, first); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Confirmation{}, ErrDuplicateAccount
		}
		return Confirmation{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "email", email)

	conf := Confirmation{Message: "Registration successful. Check your email to activate your account."}
	if err := s.notify(ctx, u.ID, email, code, first.ExpiresAt); err != nil {
		conf.DeliveryErr = err
	}
	return conf, nil
}

// Authenticate checks credentials and issues a token pair. Unknown email and
// wrong password fail identically; account status is only revealed to a
// caller who knows the password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.TokenPair, error) {
	email = normalizeEmail(email)
	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.VerifyDummy(ctx, password)
		return model.TokenPair{}, ErrAuthenticationFailed
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, u.PasswordHash, password)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return model.TokenPair{}, ErrAuthenticationFailed
	}

	switch u.Status {
	case model.StatusActive:
	case model.StatusPending:
		return model.TokenPair{}, ErrAccountNotActivated
	default:
		return model.TokenPair{}, ErrAccountDisabled
	}

	now := s.now().UTC()
	pair, rt, err := s.mint(u.ID, now)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.store.StoreRefreshToken(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	s.log.Info(ctx, "user authenticated", "user_id", u.ID)
	return pair, nil
}

// ActivateAccount redeems an activation code and moves its owner from
// PENDING to ACTIVE.
func (s *Service) ActivateAccount(ctx context.Context, code string) (Confirmation, error) {
	t, err := s.activations.Redeem(ctx, code)
	switch {
	case errors.Is(err, activation.ErrInvalidCode):
		return Confirmation{}, ErrInvalidToken
	case errors.Is(err, activation.ErrCodeExpired):
		return Confirmation{}, ErrTokenExpired
	case err != nil:
		return Confirmation{}, err
	}
	s.log.Info(ctx, "account activated", "user_id", t.UserID)
	return Confirmation{Message: "Account activated. You can now sign in."}, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// new pair is issued. Presenting a token that was already rotated is
// treated as theft and revokes every live refresh token of that user.
func (s *Service) RefreshToken(ctx context.Context, raw string) (model.TokenPair, error) {
	if raw == "" {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}
	rt, err := s.store.FindRefreshToken(ctx, token.Hash(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now().UTC()
	if rt.Revoked() {
		// Logout and disable revoke without a successor; only a rotated
		// token coming back means the secret leaked.
		if rt.ReplacedBy == nil {
			return model.TokenPair{}, ErrInvalidRefreshToken
		}
		n, err := s.store.RevokeUserRefreshTokens(ctx, rt.UserID, now)
		if err != nil {
			s.log.Error(ctx, "revoke refresh tokens after replay", "user_id", rt.UserID, "err", err)
		} else {
			s.log.Warn(ctx, "refresh token replay detected", "user_id", rt.UserID, "revoked", n)
		}
		return model.TokenPair{}, ErrInvalidRefreshToken
	}
	if rt.Expired(now) {
		return model.TokenPair{}, ErrRefreshTokenExpired
	}

	u, err := s.store.FindUserByID(ctx, rt.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if u.Status != model.StatusActive {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}

	pair, next, err := s.mint(u.ID, now)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.store.RotateRefreshToken(ctx, rt.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.TokenPair{}, ErrInvalidRefreshToken
		}
		return model.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return pair, nil
}

// ResendActivation issues a new activation code for a PENDING account,
// superseding the previous one, and mails it.
func (s *Service) ResendActivation(ctx context.Context, email string) (Confirmation, error) {
	if err := validateEmail(email); err != nil {
		return Confirmation{}, err
	}
	u, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return Confirmation{}, ErrUserNotFound
	}
	if err != nil {
		return Confirmation{}, fmt.Errorf("lookup user: %w", err)
	}
	switch u.Status {
	case model.StatusPending:
	case model.StatusActive:
		return Confirmation{}, ErrAlreadyActive
	default:
		return Confirmation{}, ErrAccountDisabled
	}

	code, expiresAt, err := s.activations.Rotate(ctx, u.ID)
	if err != nil {
		return Confirmation{}, err
	}
	if err := s.notify(ctx, u.ID, u.Email, code, expiresAt); err != nil {
		return Confirmation{}, err
	}
	return Confirmation{Message: "A new activation email has been sent."}, nil
}

// Logout revokes one refresh token. Revoking an already revoked token is a
// no-op.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrInvalidRefreshToken
	}
	rt, err := s.store.FindRefreshToken(ctx, token.Hash(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidRefreshToken
	}
	if err != nil {
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if rt.Revoked() {
		return nil
	}
	err = s.store.RevokeRefreshToken(ctx, rt.ID, s.now().UTC())
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.log.Info(ctx, "user logged out", "user_id", rt.UserID)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one, then signs out every session holding a refresh
// token. Access tokens already issued stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePasswordChange(current, next); err != nil {
		return err
	}
	u, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.Status == model.StatusDisabled {
		return ErrAccountDisabled
	}

	ok, err := s.hasher.Verify(ctx, u.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrAuthenticationFailed
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	if err := s.store.UpdatePasswordHash(ctx, u.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	n, err := s.store.RevokeUserRefreshTokens(ctx, u.ID, now)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.log.Info(ctx, "password changed", "user_id", u.ID, "revoked", n)
	return nil
}

// DisableAccount blocks the account and ends all of its sessions. Access
// tokens already issued stay valid until they expire.
func (s *Service) DisableAccount(ctx context.Context, userID string) error {
	now := s.now().UTC()
	if err := s.store.SetUserStatus(ctx, userID, model.StatusDisabled, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("disable user: %w", err)
	}
	n, err := s.store.RevokeUserRefreshTokens(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.log.Info(ctx, "account disabled", "user_id", userID, "revoked", n)
	return nil
}

// Whoami loads the account an access token was issued to.
func (s *Service) Whoami(ctx context.Context, userID string) (model.User, error) {
	u, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// mint creates an access token and an unsaved refresh token row.
func (s *Service) mint(userID string, now time.Time) (model.TokenPair, model.RefreshToken, error) {
	access, err := s.tokens.Encode(userID, now)
	if err != nil {
		return model.TokenPair{}, model.RefreshToken{}, fmt.Errorf("issue access token: %w", err)
	}
	secret, err := token.NewRefreshSecret(now, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, model.RefreshToken{}, fmt.Errorf("issue refresh token: %w", err)
	}
	rt := model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: secret.Hash,
		CreatedAt: now,
		ExpiresAt: secret.ExpiresAt,
	}
	return model.TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     secret.Raw,
		RefreshExpiresAt: secret.ExpiresAt,
	}, rt, nil
}

// notify runs the notifier under its own deadline. Callers have already
// committed, so a failure here only produces a warning.
func (s *Service) notify(ctx context.Context, userID, email, code string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.SendActivation(ctx, email, code, expiresAt); err != nil {
		s.log.Warn(ctx, "activation email not delivered", "user_id", userID, "email", email, "err", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}
