/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/appstate"
	"github.com/inkpost/apiserver/internal/client"
	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/internal/profile"
	"github.com/inkpost/apiserver/types"
	"github.com/spf13/cobra"
)

// clientApp wires the gateways, the auth state and the local cache used by
// the terminal client commands.
type clientApp struct {
	cfg      config.Config
	kv       *localstore.Store
	identity *client.Identity
	content  *client.Content
	drafts   *client.Drafts
	state    *appstate.Store
	verifier profile.Verifier
}

func openClient(ctx context.Context) (*clientApp, error) {
	setupClientLogging()
	cfg := config.LoadConfig()

	kv, err := localstore.Open(ctx, cfg.Client.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	httpClient := &http.Client{}
	return &clientApp{
		cfg:      cfg,
		kv:       kv,
		identity: client.NewIdentity(cfg.Client.APIURL, kv, httpClient),
		content:  client.NewContent(cfg.Client.APIURL, kv, httpClient),
		drafts:   client.NewDrafts(cfg.Client.AIURL, httpClient),
		state:    appstate.New(ctx, kv),
		verifier: profile.HTTPVerifier{Client: httpClient},
	}, nil
}

func (a *clientApp) Close() {
	_ = a.kv.Close()
}

// withClient runs fn with an opened client app.
func withClient(fn func(cmd *cobra.Command, args []string, app *clientApp) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, args, app)
	}
}

// requireLogin reconciles the local state and returns the live user.
func (a *clientApp) requireLogin(ctx context.Context) (*types.User, error) {
	if _, err := a.state.Reconcile(ctx, a.identity); err != nil {
		return nil, err
	}
	user := a.state.User()
	if user == nil {
		return nil, fmt.Errorf("not logged in, run: inkpost login")
	}
	return user, nil
}

// readImage loads a picture from disk and sniffs its MIME type.
func readImage(path string) (name, mimeType string, data []byte, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return "", "", nil, err
	}
	mimeType = http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return filepath.Base(path), mimeType, data, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
