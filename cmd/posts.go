/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/inkpost/apiserver/internal/client"
	"github.com/inkpost/apiserver/internal/feed"
	"github.com/inkpost/apiserver/types"
	"github.com/spf13/cobra"
)

var postFlags struct {
	title   string
	slug    string
	content string
	image   string
	status  string
}

func printPostLine(cmd *cobra.Command, post types.Post) {
	printf(cmd, "%s  %-40s  by %s  (%s)\n", post.CreatedAt.Format("2006-01-02 15:04"), post.Title, post.UserName, post.Slug)
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List posts by other authors, newest first",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		if _, err := app.state.Reconcile(cmd.Context(), app.identity); err != nil {
			return err
		}
		posts := feed.Assemble(cmd.Context(), app.content, app.state.User())
		if len(posts) == 0 {
			printf(cmd, "No posts yet\n")
			return nil
		}
		for _, post := range posts {
			printPostLine(cmd, post)
		}
		return nil
	}),
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Read and manage posts",
}

var postShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a post by slug",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		post := app.content.GetPost(cmd.Context(), args[0])
		if post == nil {
			return fmt.Errorf("post %q not found", args[0])
		}
		printf(cmd, "%s\nby %s <%s> on %s\nimage: %s\n\n%s\n",
			post.Title, post.UserName, post.UserEmail, post.CreatedAt.Format("2006-01-02"),
			app.content.FilePreviewURL(post.FeaturedImage), post.Content)
		return nil
	}),
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a post with a featured image",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		if _, err := app.requireLogin(ctx); err != nil {
			return err
		}
		name, mimeType, data, err := readImage(postFlags.image)
		if err != nil {
			return err
		}
		file, err := app.content.UploadFile(ctx, name, mimeType, data)
		if err != nil {
			return err
		}
		post, err := app.content.CreatePost(ctx, client.PostFields{
			Title:         postFlags.title,
			Slug:          postFlags.slug,
			Content:       postFlags.content,
			FeaturedImage: file.ID,
			Status:        types.PostStatus(postFlags.status),
		})
		if err != nil {
			app.content.DeleteFile(ctx, file.ID)
			return err
		}
		printf(cmd, "Published %s (id %s)\n", post.Slug, post.ID)
		return nil
	}),
}

var postEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update fields of a post",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		if _, err := app.requireLogin(ctx); err != nil {
			return err
		}
		var update client.PostUpdate
		flags := cmd.Flags()
		if flags.Changed("title") {
			update.Title = &postFlags.title
		}
		if flags.Changed("slug") {
			update.Slug = &postFlags.slug
		}
		if flags.Changed("content") {
			update.Content = &postFlags.content
		}
		if flags.Changed("status") {
			status := types.PostStatus(postFlags.status)
			update.Status = &status
		}
		var replaced string
		if flags.Changed("image") {
			name, mimeType, data, err := readImage(postFlags.image)
			if err != nil {
				return err
			}
			file, err := app.content.UploadFile(ctx, name, mimeType, data)
			if err != nil {
				return err
			}
			if old := app.content.GetPostByID(ctx, args[0]); old != nil {
				replaced = old.FeaturedImage
			}
			update.FeaturedImage = &file.ID
		}

		post, err := app.content.UpdatePost(ctx, args[0], update)
		if err != nil {
			if update.FeaturedImage != nil {
				app.content.DeleteFile(ctx, *update.FeaturedImage)
			}
			return err
		}
		if replaced != "" && replaced != post.FeaturedImage {
			app.content.DeleteFile(ctx, replaced)
		}
		printf(cmd, "Updated %s\n", post.Slug)
		return nil
	}),
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a post and its featured image",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		if _, err := app.requireLogin(ctx); err != nil {
			return err
		}
		post := app.content.GetPostByID(ctx, args[0])
		if post == nil {
			return errors.New("post not found")
		}
		if err := app.content.DeletePostCascade(ctx, *post); err != nil {
			return err
		}
		printf(cmd, "Deleted %s\n", post.Slug)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{postCreateCmd, postEditCmd} {
		c.Flags().StringVar(&postFlags.title, "title", "", "post title")
		c.Flags().StringVar(&postFlags.slug, "slug", "", "slug, derived from the title when empty")
		c.Flags().StringVar(&postFlags.content, "content", "", "HTML content")
		c.Flags().StringVar(&postFlags.image, "image", "", "path of the featured image")
		c.Flags().StringVar(&postFlags.status, "status", string(types.PostStatusActive), "active or inactive")
	}
	_ = postCreateCmd.MarkFlagRequired("title")
	_ = postCreateCmd.MarkFlagRequired("image")

	postCmd.AddCommand(postShowCmd, postCreateCmd, postEditCmd, postDeleteCmd)
	rootCmd.AddCommand(feedCmd, postCmd)
}
