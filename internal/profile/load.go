package profile

import (
	"context"

	"github.com/inkpost/apiserver/internal/feed"
	"github.com/inkpost/apiserver/types"
)

const (
	fallbackName  = "User"
	fallbackEmail = "user@example.com"
)

// SessionSource reports the user of the live session, or nil.
type SessionSource interface {
	GetCurrentUser(ctx context.Context) *types.User
}

// Page is what the profile page shows for one user.
type Page struct {
	User  types.User
	Posts []types.Post
	// Own is true when the viewer looks at their own profile.
	Own bool
}

// LoadProfile assembles the profile of userID. The name and email come from
// the live session when it belongs to userID, otherwise from the author
// snapshot on the user's newest post.
func LoadProfile(ctx context.Context, session SessionSource, posts feed.PostLister, userID string) Page {
	page := Page{User: types.User{ID: userID, Name: fallbackName, Email: fallbackEmail}}

	page.Posts = posts.GetPosts(ctx, &types.PostQuery{UserID: userID})
	if page.Posts == nil {
		page.Posts = []types.Post{}
	}
	feed.SortNewestFirst(page.Posts)

	if current := session.GetCurrentUser(ctx); current != nil && current.ID == userID {
		page.User = *current
		page.Own = true
		if page.User.Name == "" {
			page.User.Name = fallbackName
		}
		return page
	}
	if len(page.Posts) > 0 {
		newest := page.Posts[0]
		if newest.UserName != "" {
			page.User.Name = newest.UserName
		}
		if newest.UserEmail != "" {
			page.User.Email = newest.UserEmail
		}
	}
	return page
}
