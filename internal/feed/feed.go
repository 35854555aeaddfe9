// Package feed assembles the home page post list.
package feed

import (
	"context"
	"sort"

	"github.com/inkpost/apiserver/types"
)

// PostLister is the read side of the content gateway.
type PostLister interface {
	GetPosts(ctx context.Context, query *types.PostQuery) []types.Post
}

// Assemble fetches every post, drops the viewer's own posts when viewer is
// non-nil and orders the rest newest first. It returns nil when ctx ends
// before the list arrives.
func Assemble(ctx context.Context, posts PostLister, viewer *types.User) []types.Post {
	all := posts.GetPosts(ctx, &types.PostQuery{})
	if ctx.Err() != nil {
		return nil
	}

	out := make([]types.Post, 0, len(all))
	for _, post := range all {
		if viewer != nil && post.UserID == viewer.ID {
			continue
		}
		out = append(out, post)
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders posts by creation time, newest first. Posts with
// equal timestamps keep their order.
func SortNewestFirst(posts []types.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
