package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/lib/resettoken"
	"credentials_service/internal/lib/verification"
	"credentials_service/internal/metrics"
	"credentials_service/internal/models"
	"credentials_service/internal/storage"
)

// Messages shown to clients. They are deliberately identical across the
// failure causes they cover.
const (
	MsgRegistrationFailed      = "Registration failed. Please try again."
	MsgInvalidCredentials      = "Invalid email or password"
	MsgResetRequested          = "If an account exists, a password reset email has been sent"
	MsgInvalidOrExpiredToken   = "Invalid or expired reset token"
	MsgInvalidVerificationLink = "Invalid or expired verification link"
	MsgVerificationResent      = "If the account exists and is not verified, a verification email has been sent"
)

var (
	ErrRegistrationFailed       = errors.New("registration failed")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken    = errors.New("invalid or expired reset token")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrUserNotFound             = errors.New("user not found")
	ErrOAuthProfileIncomplete   = errors.New("oauth profile has no id or email")
)

const defaultNotifyTimeout = 15 * time.Second

type UserSaver interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	LinkGoogleID(ctx context.Context, id, googleID string) error
	SetEmailVerified(ctx context.Context, id string) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserWithPassword(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByEmailOrGoogleID(ctx context.Context, googleID, email string) (models.User, error)
}

type PasswordHasher interface {
	Hash(plain string) ([]byte, error)
	Verify(plain string, hash []byte) bool
}

type TokenIssuer interface {
	NewToken(userID, email string) (string, error)
}

type ResetTokens interface {
	Issue(ctx context.Context, user models.User) (string, error)
	Consume(ctx context.Context, token, newPassword string) (models.User, error)
	TTL() time.Duration
}

type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

// Options carries the values used to build links and bound notifications.
type Options struct {
	FrontendURL        string
	PublicURL          string
	VerificationSecret string
	VerificationTTL    time.Duration
	NotifyTimeout      time.Duration
}

// Session is what every successful sign-in style operation returns.
type Session struct {
	User  models.PublicUser
	Token string
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	hasher      PasswordHasher
	tokens      TokenIssuer
	resets      ResetTokens
	publisher   Publisher
	metrics     *metrics.Recorder
	opts        Options
	now         func() time.Time

	wg sync.WaitGroup
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	hasher PasswordHasher,
	tokens TokenIssuer,
	resets ResetTokens,
	publisher Publisher,
	recorder *metrics.Recorder,
	opts Options,
) *Auth {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}

	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		hasher:      hasher,
		tokens:      tokens,
		resets:      resets,
		publisher:   publisher,
		metrics:     recorder,
		opts:        opts,
		now:         time.Now,
	}
}

func (a *Auth) WithClock(now func() time.Time) *Auth {
	a.now = now
	return a
}

// * Register создает пользователя с неподтвержденной почтой и сразу выдает токен
func (a *Auth) Register(ctx context.Context, name, email, password string) (Session, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	email = models.NormalizeEmail(email)

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		a.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrSaver.CreateUser(ctx, models.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		PassHash: passHash,
	})
	if err != nil {
		a.metrics.AuthEvent("register", metrics.OutcomeFailure)

		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return Session{}, fmt.Errorf("%s: %w", op, ErrRegistrationFailed)
		}

		log.Error("failed to save user", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := a.session(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		a.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("register", metrics.OutcomeSuccess)
	log.Info("user registered", slog.String("uid", user.ID))

	link, err := a.verificationLink(user.ID)
	if err != nil {
		log.Error("failed to build verification link", sl.Err(err))
	}

	a.notify(ctx, models.Message{
		Email:   user.Email,
		Name:    user.Name,
		Link:      link,
		ExpiresIn: a.opts.VerificationTTL,
		Purpose:   models.PurposeWelcome,
	})

	return session, nil
}

// * Login проверяет учетные данные. Отсутствующий пользователь, аккаунт без пароля
// * и неверный пароль неразличимы для клиента
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserWithPassword(ctx, models.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to get user", sl.Err(err))
			return Session{}, fmt.Errorf("%s: %w", op, err)
		}

		log.Info("user not found")
	}

	// A missing user or OAuth-only account has no hash; Verify still burns a compare.
	if !a.hasher.Verify(password, user.PassHash) {
		log.Info("invalid credentials")
		a.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	session, err := a.session(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	log.Info("user logged in successfully", slog.String("uid", user.ID))

	return session, nil
}

// ForgotPassword returns nil both for unknown addresses and for issued
// resets. Only store failures surface.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown email")
			return nil
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.resets.Issue(ctx, user)
	if err != nil {
		log.Error("failed to issue reset token", sl.Err(err))
		a.metrics.AuthEvent("forgot_password", metrics.OutcomeFailure)
		return fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("forgot_password", metrics.OutcomeSuccess)
	log.Info("reset token issued", slog.String("uid", user.ID))

	a.notify(ctx, models.Message{
		Email:   user.Email,
		Name:    user.Name,
		Link:      a.resetLink(token),
		ExpiresIn: a.resets.TTL(),
		Purpose:   models.PurposePasswordReset,
	})

	return nil
}

func (a *Auth) ResetPassword(ctx context.Context, token, newPassword string) (Session, error) {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.resets.Consume(ctx, token, newPassword)
	if err != nil {
		a.metrics.AuthEvent("reset_password", metrics.OutcomeFailure)

		if errors.Is(err, resettoken.ErrInvalidOrExpired) {
			log.Info("invalid or expired reset token")
			return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}

		log.Error("failed to reset password", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := a.session(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("reset_password", metrics.OutcomeSuccess)
	log.Info("password reset", slog.String("uid", user.ID))

	return session, nil
}

// FindOrCreateOAuthUser signs in a provider identity. An existing account
// matched by email gets the provider id linked; a new account is created
// verified and without a password.
func (a *Auth) FindOrCreateOAuthUser(ctx context.Context, googleID, email, name string) (Session, error) {
	const op = "auth.FindOrCreateOAuthUser"

	log := a.log.With(slog.String("op", op))

	email = models.NormalizeEmail(email)
	if googleID == "" || email == "" {
		a.metrics.AuthEvent("oauth", metrics.OutcomeFailure)
		return Session{}, fmt.Errorf("%s: %w", op, ErrOAuthProfileIncomplete)
	}

	user, err := a.findOrCreateOAuthUser(ctx, googleID, email, name)
	if err != nil {
		log.Error("failed to resolve oauth user", sl.Err(err))
		a.metrics.AuthEvent("oauth", metrics.OutcomeFailure)
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := a.session(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("oauth", metrics.OutcomeSuccess)
	log.Info("oauth user signed in", slog.String("uid", user.ID))

	return session, nil
}

func (a *Auth) findOrCreateOAuthUser(ctx context.Context, googleID, email, name string) (models.User, error) {
	user, err := a.usrProvider.UserByEmailOrGoogleID(ctx, googleID, email)
	if err == nil {
		if user.GoogleID == "" {
			if err := a.usrSaver.LinkGoogleID(ctx, user.ID, googleID); err != nil {
				return models.User{}, err
			}
			user.GoogleID = googleID
		}

		return user, nil
	}

	if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}

	user, err = a.usrSaver.CreateUser(ctx, models.User{
		Name:            name,
		Email:           email,
		GoogleID:        googleID,
		IsEmailVerified: true,
	})
	if errors.Is(err, storage.ErrUserExists) {
		// lost a race with a concurrent first sign-in
		return a.usrProvider.UserByEmailOrGoogleID(ctx, googleID, email)
	}

	return user, err
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) error {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	uid, err := verification.ParseVerificationToken(token, a.opts.VerificationSecret, a.now())
	if err != nil {
		log.Info("invalid verification token", sl.Err(err))
		a.metrics.AuthEvent("verify_email", metrics.OutcomeFailure)
		return fmt.Errorf("%s: %w", op, ErrInvalidVerificationToken)
	}

	if err := a.usrSaver.SetEmailVerified(ctx, uid); err != nil {
		a.metrics.AuthEvent("verify_email", metrics.OutcomeFailure)

		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("verification for missing user", slog.String("uid", uid))
			return fmt.Errorf("%s: %w", op, ErrInvalidVerificationToken)
		}

		log.Error("failed to set email verified", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.metrics.AuthEvent("verify_email", metrics.OutcomeSuccess)
	log.Info("email verified", slog.String("uid", uid))

	return nil
}

// ResendVerification mails a fresh link to unverified accounts. Unknown and
// already verified addresses are silently accepted.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.IsEmailVerified {
		return nil
	}

	link, err := a.verificationLink(user.ID)
	if err != nil {
		log.Error("failed to build verification link", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.notify(ctx, models.Message{
		Email:   user.Email,
		Name:    user.Name,
		Link:      link,
		ExpiresIn: a.opts.VerificationTTL,
		Purpose:   models.PurposeEmailVerification,
	})

	return nil
}

func (a *Auth) UserByID(ctx context.Context, id string) (models.PublicUser, error) {
	const op = "auth.UserByID"

	user, err := a.usrProvider.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// Wait blocks until background notifications finish or ctx is done.
func (a *Auth) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auth) session(user models.User) (Session, error) {
	token, err := a.tokens.NewToken(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}

	return Session{User: user.Public(), Token: token}, nil
}

// notify publishes msg in the background. Failures are logged and counted,
// never returned, and never retried.
func (a *Auth) notify(ctx context.Context, msg models.Message) {
	if a.publisher == nil {
		return
	}

	log := a.log.With(
		slog.String("op", "auth.notify"),
		slog.String("purpose", msg.Purpose),
	)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.NotifyTimeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error("notification panicked", slog.Any("panic", r))
				a.metrics.Notification(msg.Purpose, metrics.OutcomeFailure)
			}
		}()

		if err := a.publisher.Publish(ctx, msg); err != nil {
			log.Error("failed to publish notification", sl.Err(err))
			a.metrics.Notification(msg.Purpose, metrics.OutcomeFailure)
			return
		}

		a.metrics.Notification(msg.Purpose, metrics.OutcomeSuccess)
	}()
}

func (a *Auth) verificationLink(uid string) (string, error) {
	token, err := verification.GenerateVerificationToken(uid, a.opts.VerificationTTL, a.opts.VerificationSecret, a.now())
	if err != nil {
		return "", err
	}

	return verification.Link(a.opts.PublicURL, token), nil
}

func (a *Auth) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(a.opts.FrontendURL, "/"), token)
}
