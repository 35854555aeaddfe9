package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// SessionRepository defines persistence operations for sessions and
// password recoveries.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	Get(ctx context.Context, id string) (types.Session, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	CreateRecovery(ctx context.Context, recovery types.Recovery) (types.Recovery, error)
	ConsumeRecovery(ctx context.Context, userID, secretHash string) error
}

// RecoveryPublisher delivers recovery links to users.
type RecoveryPublisher interface {
	PublishRecovery(ctx context.Context, event mq.RecoveryRequested) (string, error)
}

type AccountOptions struct {
	SessionTTL  time.Duration
	RecoveryTTL time.Duration
	// Publisher may be nil, in which case recovery links are only logged.
	Publisher RecoveryPublisher
}

// AccountService implements sign-up, sessions, password recovery and avatar
// preferences.
type AccountService struct {
	users       UserRepository
	sessions    SessionRepository
	files       FileRepository
	publisher   RecoveryPublisher
	sessionTTL  time.Duration
	recoveryTTL time.Duration
	now         func() time.Time
}

func NewAccountService(users UserRepository, sessions SessionRepository, files FileRepository, opts AccountOptions) *AccountService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.RecoveryTTL <= 0 {
		opts.RecoveryTTL = time.Hour
	}
	return &AccountService{
		users:       users,
		sessions:    sessions,
		files:       files,
		publisher:   opts.Publisher,
		sessionTTL:  opts.SessionTTL,
		recoveryTTL: opts.RecoveryTTL,
		now:         time.Now,
	}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return invalidf("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalidf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Register creates an email/password account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hashed),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return types.User{}, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
	}
	return user, err
}

// Login verifies credentials and opens a session.
func (s *AccountService) Login(ctx context.Context, email, password string) (types.Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return types.Session{}, err
	}
	if user.PasswordHash == "" {
		return types.Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.openSession(ctx, user.ID, ProviderEmail)
}

func (s *AccountService) openSession(ctx context.Context, userID, provider string) (types.Session, error) {
	return s.sessions.Create(ctx, types.Session{
		UserID:    userID,
		Provider:  provider,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
	})
}

// SessionTTL is how long new sessions stay valid.
func (s *AccountService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// ValidateSession returns the live session with the given ID, owned by
// userID.
func (s *AccountService) ValidateSession(ctx context.Context, sessionID, userID string) (types.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, ErrUnauthorized
		}
		return types.Session{}, err
	}
	if session.UserID != userID {
		return types.Session{}, ErrUnauthorized
	}
	return session, nil
}

// Logout deletes every session of the user.
func (s *AccountService) Logout(ctx context.Context, userID string) error {
	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("user_id", userID).Int64("sessions", n).Msg("sessions deleted")
	return nil
}

// CurrentUser returns the account behind a validated session.
func (s *AccountService) CurrentUser(ctx context.Context, userID string) (types.User, error) {
	return s.users.GetByID(ctx, userID)
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func newSecret() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// RequestRecovery stores a one-time secret for the account behind email and
// sends redirectURL, extended with userId, secret and expire query
// parameters, to the user. It returns store.ErrNotFound for unknown emails.
func (s *AccountService) RequestRecovery(ctx context.Context, email, redirectURL string) error {
	link, err := url.Parse(strings.TrimSpace(redirectURL))
	if err != nil || link.Scheme == "" || link.Host == "" {
		return invalidf("invalid recovery url")
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}

	secret, err := newSecret()
	if err != nil {
		return fmt.Errorf("generate recovery secret: %w", err)
	}
	recovery, err := s.sessions.CreateRecovery(ctx, types.Recovery{
		UserID:     user.ID,
		SecretHash: hashSecret(secret),
		ExpiresAt:  s.now().UTC().Add(s.recoveryTTL),
	})
	if err != nil {
		return err
	}

	q := link.Query()
	q.Set("userId", user.ID)
	q.Set("secret", secret)
	q.Set("expire", recovery.ExpiresAt.Format(time.RFC3339))
	link.RawQuery = q.Encode()

	event := mq.RecoveryRequested{
		UserID:    user.ID,
		Email:     user.Email,
		Link:      link.String(),
		ExpiresAt: recovery.ExpiresAt,
	}
	if s.publisher == nil {
		log.Ctx(ctx).Info().Str("user_id", user.ID).Str("link", event.Link).Msg("recovery requested, no broker configured")
		return nil
	}
	if _, err := s.publisher.PublishRecovery(ctx, event); err != nil {
		return fmt.Errorf("publish recovery: %w", err)
	}
	return nil
}

// CompleteRecovery sets a new password using a recovery secret. All existing
// sessions are revoked.
func (s *AccountService) CompleteRecovery(ctx context.Context, userID, secret, password string) error {
	userID = strings.TrimSpace(userID)
	secret = strings.TrimSpace(secret)
	if userID == "" || secret == "" {
		return invalidf("user id and secret are required")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	if err := s.sessions.ConsumeRecovery(ctx, userID, hashSecret(secret)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired recovery secret", ErrUnauthorized)
		}
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hashed)
	if _, err := s.users.Update(ctx, user); err != nil {
		return err
	}
	_, err = s.sessions.DeleteByUser(ctx, userID)
	return err
}

// SetProfilePicture records fileID as the user's avatar. The file must exist
// and belong to the user. An empty fileID clears the avatar.
func (s *AccountService) SetProfilePicture(ctx context.Context, userID, fileID string) (types.User, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID != "" {
		file, err := s.files.Get(ctx, fileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.User{}, invalidf("file %s does not exist", fileID)
			}
			return types.User{}, err
		}
		if file.OwnerID != userID {
			return types.User{}, ErrForbidden
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	user.ProfilePicture = fileID
	return s.users.Update(ctx, user)
}

// LoginExternal opens a session for an identity verified by an external
// provider, creating the account on first login.
func (s *AccountService) LoginExternal(ctx context.Context, provider, name, email string) (types.User, types.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return types.User{}, types.Session{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.users.Create(ctx, types.User{Name: strings.TrimSpace(name), Email: email})
		if errors.Is(err, store.ErrDuplicate) {
			user, err = s.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return types.User{}, types.Session{}, err
	}

	session, err := s.openSession(ctx, user.ID, provider)
	if err != nil {
		return types.User{}, types.Session{}, err
	}
	return user, session, nil
}
