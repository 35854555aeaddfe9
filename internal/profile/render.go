package profile

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

var palette = []string{
	"#EF4444", "#F59E0B", "#10B981", "#3B82F6",
	"#8B5CF6", "#EC4899", "#06B6D4", "#84CC16",
}

const neutralColor = "#6B7280"

// Initials are the first letters of up to two words of name, uppercased.
// An empty name gives "U".
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Split(name, " ") {
		if word == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(r)
	}
	initials := []rune(strings.ToUpper(b.String()))
	if len(initials) == 0 {
		return "U"
	}
	if len(initials) > 2 {
		initials = initials[:2]
	}
	return string(initials)
}

// Color picks a palette colour from the first byte of userID.
func Color(userID string) string {
	if userID == "" {
		return neutralColor
	}
	return palette[int(userID[0])%len(palette)]
}

// Rendering is how an avatar is drawn: the picture URL, or initials on a
// colour when URL is empty.
type Rendering struct {
	URL      string
	Initials string
	Color    string
}

// Resolver finds a displayable picture for a user.
type Resolver struct {
	Files    Files
	KV       localstore.KV
	Verifier Verifier
	Attempts int
	Interval time.Duration
}

func NewResolver(files Files, kv localstore.KV, verifier Verifier) *Resolver {
	return &Resolver{Files: files, KV: kv, Verifier: verifier, Attempts: defaultAttempts, Interval: defaultInterval}
}

// Resolve prefers the picture on the account record and falls back to the
// cached id. A picture that is missing or does not load drops the cache entry
// and renders initials.
func (r *Resolver) Resolve(ctx context.Context, user types.User) Rendering {
	out := Rendering{Initials: Initials(user.Name), Color: Color(user.ID)}
	key := CacheKey(user.ID)

	cached, err := r.KV.Get(ctx, key)
	if err != nil {
		cached = ""
	}
	id := user.ProfilePicture
	if id == "" {
		id = cached
	} else if cached != id {
		if err := r.KV.Set(ctx, key, id); err != nil {
			log.Debug().Err(err).Msg("reseed cached profile picture")
		}
	}
	if id == "" {
		return out
	}

	url := r.Files.FileViewURL(id)
	if !r.Files.CheckFileExists(ctx, id) {
		r.drop(ctx, key)
		return out
	}
	if err := verifyWithRetry(ctx, r.Verifier, url, r.Attempts, r.Interval); err != nil {
		log.Debug().Err(err).Str("file_id", id).Msg("profile picture does not load")
		r.drop(ctx, key)
		return out
	}
	out.URL = url
	return out
}

func (r *Resolver) drop(ctx context.Context, key string) {
	if ctx.Err() != nil {
		return
	}
	if err := r.KV.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("drop cached profile picture")
	}
}
