package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/inkpost/apiserver/internal/localstore"
)

// SessionKey is the local store key holding the bearer secret.
const SessionKey = "session"

// transport performs JSON calls against the content backend and attaches the
// stored session secret.
type transport struct {
	baseURL    string
	httpClient *http.Client
	kv         localstore.KV
}

func newTransport(baseURL string, kv localstore.KV, httpClient *http.Client) *transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		kv:         kv,
	}
}

func (t *transport) token(ctx context.Context) string {
	if t.kv == nil {
		return ""
	}
	token, err := t.kv.Get(ctx, SessionKey)
	if err != nil {
		return ""
	}
	return token
}

func (t *transport) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := t.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON sends in as JSON (when non-nil) and decodes the answer into out
// (when non-nil).
func (t *transport) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	req, err := t.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return t.send(req, out)
}

func (t *transport) send(req *http.Request, out any) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}

func isNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
