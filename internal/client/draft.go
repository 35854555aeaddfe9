package client

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrGenerationFailed is the single failure of the draft gateway.
var ErrGenerationFailed = errors.New("Failed to generate content")

// Turn is one earlier message of an assistant conversation. Role is "user"
// or "model".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Drafts calls the LLM proxy. Calls are single shot: no retries, no client
// side timeout beyond ctx.
type Drafts struct {
	t *transport
}

func NewDrafts(aiURL string, httpClient *http.Client) *Drafts {
	return &Drafts{t: newTransport(aiURL, nil, httpClient)}
}

// Generate drafts a blog post body about topic.
func (d *Drafts) Generate(ctx context.Context, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", validationf("title is required")
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := d.t.doJSON(ctx, http.MethodPost, "/generate", map[string]string{"title": topic}, &out); err != nil {
		log.Debug().Err(err).Msg("generate draft")
		return "", ErrGenerationFailed
	}
	return out.Content, nil
}

// AskAI sends message with the conversation so far and returns the reply.
func (d *Drafts) AskAI(ctx context.Context, message string, history []Turn) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", validationf("message is required")
	}
	body := struct {
		Prompt  string `json:"prompt"`
		History []Turn `json:"history,omitempty"`
	}{Prompt: message, History: history}
	var out struct {
		Text string `json:"text"`
	}
	if err := d.t.doJSON(ctx, http.MethodPost, "/askAi", body, &out); err != nil {
		log.Debug().Err(err).Msg("ask assistant")
		return "", ErrGenerationFailed
	}
	return out.Text, nil
}

var (
	boldPattern     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern   = regexp.MustCompile(`\*(.*?)\*`)
	bulletPattern   = regexp.MustCompile(`(?m)^[ \t]*\*[ \t]+`)
	headingPattern  = regexp.MustCompile(`(?m)^#+[ \t]+`)
	blankRunPattern = regexp.MustCompile(`\n\s*\n\s*\n`)
)

// CleanMarkdown flattens the markdown a model tends to emit into plain text
// for terminal display.
func CleanMarkdown(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = bulletPattern.ReplaceAllString(text, "• ")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = headingPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
