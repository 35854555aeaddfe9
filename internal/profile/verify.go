package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const verifyTimeout = 5 * time.Second

// HTTPVerifier fetches the URL and requires a 2xx image response.
type HTTPVerifier struct {
	Client *http.Client
}

func (v HTTPVerifier) Verify(ctx context.Context, url string) error {
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxPictureSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("picture url answered %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("picture url served %q", ct)
	}
	return nil
}
