package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/mailer"
	"github.com/kraman82351/Task-management/internal/store"
	"github.com/kraman82351/Task-management/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByTokenHash(ctx context.Context, kind types.TokenKind, hash string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id string, profile types.Profile) (types.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetRole(ctx context.Context, id string, role types.Role) error
	SetToken(ctx context.Context, id string, kind types.TokenKind, token types.OneTimeToken) error
	ConsumeToken(ctx context.Context, id string, kind types.TokenKind, hash string, change types.TokenConsumption) error
	Delete(ctx context.Context, id string) error
}

// EmailDispatcher hands a rendered email to the delivery pipeline.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, msg mailer.Message) error
}

// OwnerPurger removes everything a user owns before the user is deleted.
type OwnerPurger interface {
	PurgeOwner(ctx context.Context, ownerID string) (int64, error)
}

type UserServiceConfig struct {
	ClientURL       string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// UserService encapsulates account and credential use-cases.
type UserService struct {
	repo   UserRepository
	hasher *auth.Hasher
	mail   EmailDispatcher
	tasks  OwnerPurger
	cfg    UserServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewUserService(repo UserRepository, hasher *auth.Hasher, mail EmailDispatcher, tasks OwnerPurger, cfg UserServiceConfig, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		mail:   mail,
		tasks:  tasks,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfilePatch carries the self-editable profile fields. Nil means unchanged.
type ProfilePatch struct {
	Name  *string
	Bio   *string
	Photo *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return types.User{}, invalid("All fields are required")
	}
	if !validEmail(email) {
		return types.User{}, invalid("Please enter a valid email")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, ErrEmailInUse
	}
	if err != nil {
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, invalid("All fields are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.User{}, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, user.PasswordHash, password)
	if err != nil {
		return types.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (types.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.User{}, invalid("Name is required")
		}
		user.Name = name
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Photo != nil {
		user.Photo = strings.TrimSpace(*patch.Photo)
	}

	updated, err := s.repo.UpdateProfile(ctx, id, types.Profile{
		Name:  user.Name,
		Bio:   user.Bio,
		Photo: user.Photo,
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return updated, err
}

// RequestVerification replaces any pending verification token with a new
// one and emails its link.
func (s *UserService) RequestVerification(ctx context.Context, user types.User) error {
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	raw, err := s.issueToken(ctx, user.ID, types.TokenVerification, s.cfg.VerificationTTL)
	if err != nil {
		return err
	}

	msg, err := mailer.VerificationEmail(user.Email, user.Name, s.link("verify-email", raw), s.cfg.VerificationTTL)
	if err != nil {
		return err
	}
	if err := s.mail.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("dispatch verification email: %w", err)
	}
	return nil
}

// VerifyEmail redeems a verification token.
func (s *UserService) VerifyEmail(ctx context.Context, raw string) error {
	user, hash, err := s.redeemable(ctx, types.TokenVerification, raw)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	err = s.repo.ConsumeToken(ctx, user.ID, types.TokenVerification, hash, types.TokenConsumption{MarkVerified: true})
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}

	s.logger.InfoContext(ctx, "user verified", slog.String("user_id", user.ID))
	return nil
}

// ForgotPassword emails a reset link to the account owning email.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	raw, err := s.issueToken(ctx, user.ID, types.TokenReset, s.cfg.ResetTTL)
	if err != nil {
		return err
	}

	msg, err := mailer.PasswordResetEmail(user.Email, user.Name, s.link("reset-password", raw), s.cfg.ResetTTL)
	if err != nil {
		return err
	}
	if err := s.mail.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("dispatch reset email: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token and sets password in the same write.
func (s *UserService) ResetPassword(ctx context.Context, raw, password string) error {
	if password == "" {
		return invalid("Password is required")
	}

	user, hash, err := s.redeemable(ctx, types.TokenReset, raw)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.repo.ConsumeToken(ctx, user.ID, types.TokenReset, hash, types.TokenConsumption{PasswordHash: passwordHash})
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == "" || next == "" {
		return invalid("All fields are required")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(ctx, user.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, id, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes target and everything it owns. actorID may not delete itself.
func (s *UserService) Delete(ctx context.Context, actorID, targetID string) error {
	if _, err := uuid.Parse(targetID); err != nil {
		return invalid("Invalid user id")
	}
	if actorID == targetID {
		return ErrSelfDelete
	}
	if _, err := s.Get(ctx, targetID); err != nil {
		return err
	}

	removed, err := s.tasks.PurgeOwner(ctx, targetID)
	if err != nil {
		return fmt.Errorf("delete tasks of %s: %w", targetID, err)
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", targetID),
		slog.String("actor_id", actorID),
		slog.Int64("tasks_removed", removed),
	)
	return nil
}

// SetRole changes the role of the account owning email.
func (s *UserService) SetRole(ctx context.Context, email string, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, invalid(fmt.Sprintf("Unknown role %q", role))
	}
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	if err != nil {
		return types.User{}, err
	}
	if err := s.repo.SetRole(ctx, user.ID, role); err != nil {
		return types.User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *UserService) issueToken(ctx context.Context, userID string, kind types.TokenKind, ttl time.Duration) (string, error) {
	raw, token, err := auth.NewOneTimeToken(ttl, s.now())
	if err != nil {
		return "", fmt.Errorf("generate %s token: %w", kind, err)
	}
	if err := s.repo.SetToken(ctx, userID, kind, token); err != nil {
		return "", fmt.Errorf("store %s token: %w", kind, err)
	}
	s.logger.InfoContext(ctx, "one-time token issued",
		slog.String("user_id", userID),
		slog.String("kind", string(kind)),
		slog.Time("expires_at", token.ExpiresAt),
	)
	return raw, nil
}

// redeemable resolves raw to its user and checks it has not expired.
func (s *UserService) redeemable(ctx context.Context, kind types.TokenKind, raw string) (types.User, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.User{}, "", invalid("Token is required")
	}

	hash := auth.HashToken(raw)
	user, err := s.repo.GetByTokenHash(ctx, kind, hash)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", ErrInvalidToken
	}
	if err != nil {
		return types.User{}, "", fmt.Errorf("load %s token: %w", kind, err)
	}

	if err := auth.CheckOneTimeToken(user.Token(kind), raw, s.now()); err != nil {
		return types.User{}, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return user, hash, nil
}

func (s *UserService) link(path, token string) string {
	return strings.TrimRight(s.cfg.ClientURL, "/") + "/" + path + "/" + url.PathEscape(token)
}
