// Package profile implements the profile picture lifecycle and profile page
// loading on top of the client gateways.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

// MaxPictureSize matches the upload limit of the content gateway.
const MaxPictureSize = 5 << 20

const (
	defaultAttempts = 3
	defaultInterval = time.Second
	cleanupTimeout  = 10 * time.Second
)

// State is a step of the profile picture lifecycle.
type State int

const (
	NoPicture State = iota
	PendingUpload
	Uploaded
	Confirmed
	UploadFailed
	RolledBack
)

func (s State) String() string {
	switch s {
	case PendingUpload:
		return "pending_upload"
	case Uploaded:
		return "uploaded"
	case Confirmed:
		return "confirmed"
	case UploadFailed:
		return "upload_failed"
	case RolledBack:
		return "rolled_back"
	default:
		return "no_picture"
	}
}

var (
	ErrInvalidPicture  = errors.New("invalid picture")
	ErrNothingSelected = errors.New("no picture selected")
	ErrNotStored       = errors.New("file was uploaded but cannot be found in storage")
	ErrUploadRunning   = errors.New("an upload is already running")
)

// Files is the file side of the content gateway.
type Files interface {
	UploadFile(ctx context.Context, name, mimeType string, data []byte) (*types.File, error)
	CheckFileExists(ctx context.Context, id string) bool
	DeleteFile(ctx context.Context, id string) bool
	FileViewURL(id string) string
}

// AccountUpdater commits the avatar on the remote account record.
type AccountUpdater interface {
	UpdateProfilePicture(ctx context.Context, fileID string) (*types.User, error)
}

// Verifier checks that url serves an image.
type Verifier interface {
	Verify(ctx context.Context, url string) error
}

// CacheKey is the local store key of the cached picture id of userID.
func CacheKey(userID string) string {
	return "profilePic_" + userID
}

// Option configures an Avatar.
type Option func(*Avatar)

// WithRetry sets how many times a new picture URL is fetched and the pause
// between attempts.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(a *Avatar) {
		if attempts > 0 {
			a.attempts = attempts
		}
		if interval >= 0 {
			a.interval = interval
		}
	}
}

// Result is the outcome of an upload.
type Result struct {
	State  State
	FileID string
	URL    string
}

// Avatar drives the picture of one user through the lifecycle. Uploads are
// two phase: the cache entry is written tentatively and confirmed or dropped
// after the new URL was verified.
type Avatar struct {
	mu       sync.Mutex
	user     types.User
	files    Files
	account  AccountUpdater
	kv       localstore.KV
	verifier Verifier
	attempts int
	interval time.Duration

	state     State
	pending   *selection
	preview   string
	uploading bool
}

type selection struct {
	name     string
	mimeType string
	data     []byte
}

func NewAvatar(user types.User, files Files, account AccountUpdater, kv localstore.KV, verifier Verifier, opts ...Option) *Avatar {
	a := &Avatar{
		user:     user,
		files:    files,
		account:  account,
		kv:       kv,
		verifier: verifier,
		attempts: defaultAttempts,
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	if user.ProfilePicture != "" {
		a.state = Confirmed
	}
	return a
}

func (a *Avatar) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Preview is the reference currently shown: a local file reference while an
// upload is pending, a remote URL once known, or "" for initials.
func (a *Avatar) Preview() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preview
}

// Select validates a local image and enters PendingUpload.
func (a *Avatar) Select(name, mimeType string, data []byte) error {
	switch {
	case !strings.HasPrefix(strings.ToLower(mimeType), "image/"):
		return fmt.Errorf("%w: please select an image file", ErrInvalidPicture)
	case len(data) == 0:
		return fmt.Errorf("%w: file is empty", ErrInvalidPicture)
	case len(data) > MaxPictureSize:
		return fmt.Errorf("%w: please select an image smaller than %d MB", ErrInvalidPicture, MaxPictureSize>>20)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &selection{name: name, mimeType: mimeType, data: data}
	a.preview = "local:" + name
	a.state = PendingUpload
	return nil
}

// knownGood returns the picture id to fall back to: the remote record, or
// the cached id when the record has none.
func (a *Avatar) knownGood(ctx context.Context, user types.User) string {
	if user.ProfilePicture != "" {
		return user.ProfilePicture
	}
	cached, err := a.kv.Get(ctx, CacheKey(user.ID))
	if err != nil {
		return ""
	}
	return cached
}

// Upload sends the selected picture and verifies it. A picture whose URL
// never serves an image is rolled back without an error; callers inspect
// Result.State. The lock is not held during network calls, so State and
// Preview report progress while an upload runs.
func (a *Avatar) Upload(ctx context.Context) (Result, error) {
	a.mu.Lock()
	switch {
	case a.uploading:
		state := a.state
		a.mu.Unlock()
		return Result{State: state}, ErrUploadRunning
	case a.pending == nil:
		state := a.state
		a.mu.Unlock()
		return Result{State: state}, ErrNothingSelected
	}
	sel := a.pending
	a.pending = nil
	a.uploading = true
	user := a.user
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.uploading = false
		a.mu.Unlock()
	}()

	previous := a.knownGood(ctx, user)
	logger := log.With().Str("user_id", user.ID).Logger()

	file, err := a.files.UploadFile(ctx, sel.name, sel.mimeType, sel.data)
	if err == nil && (file == nil || file.ID == "") {
		err = errors.New("upload returned no file id")
	}
	if err == nil && !a.files.CheckFileExists(ctx, file.ID) {
		err = ErrNotStored
	}
	if err != nil {
		a.set(UploadFailed, a.files.FileViewURL(previous))
		logger.Warn().Err(err).Msg("profile picture upload failed")
		return Result{State: UploadFailed}, err
	}

	key := CacheKey(user.ID)
	if err := a.kv.Set(ctx, key, file.ID); err != nil {
		logger.Warn().Err(err).Msg("cache profile picture")
	}
	url := a.files.FileViewURL(file.ID)
	a.set(Uploaded, url)

	if err := a.verify(ctx, url); err != nil {
		a.rollback(ctx, key, file.ID)
		logger.Warn().Err(err).Str("file_id", file.ID).Msg("profile picture did not verify, rolled back")
		return Result{State: RolledBack, FileID: file.ID}, nil
	}

	updated, err := a.account.UpdateProfilePicture(ctx, file.ID)
	if err != nil {
		a.rollback(ctx, key, file.ID)
		return Result{State: RolledBack, FileID: file.ID}, fmt.Errorf("save profile picture: %w", err)
	}

	if previous != "" && previous != file.ID && !a.files.DeleteFile(ctx, previous) {
		logger.Warn().Str("file_id", previous).Msg("old profile picture not deleted")
	}
	a.mu.Lock()
	a.user = *updated
	a.state = Confirmed
	a.mu.Unlock()
	logger.Info().Str("file_id", file.ID).Msg("profile picture updated")
	return Result{State: Confirmed, FileID: file.ID, URL: url}, nil
}

func (a *Avatar) set(state State, preview string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.preview = preview
}

// rollback drops the tentative cache entry and the new file. It outlives a
// cancelled ctx so an interrupted upload leaves no stale entry behind.
func (a *Avatar) rollback(ctx context.Context, key, fileID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := a.kv.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("drop cached profile picture")
	}
	if !a.files.DeleteFile(ctx, fileID) {
		log.Warn().Str("file_id", fileID).Msg("rolled back profile picture not deleted")
	}
	a.set(RolledBack, "")
}

func (a *Avatar) verify(ctx context.Context, url string) error {
	return verifyWithRetry(ctx, a.verifier, url, a.attempts, a.interval)
}

func verifyWithRetry(ctx context.Context, verifier Verifier, url string, attempts int, interval time.Duration) error {
	if url == "" {
		return errors.New("no url for picture")
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := verifier.Verify(ctx, url)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Int("of", attempts).Msg("verify picture")
		}
		return err
	}, policy)
}
