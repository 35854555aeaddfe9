package aiproxy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/inkpost/apiserver/config"
)

// Turn is one earlier message of a conversation. Role is "user" or "model".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Provider is a hosted text generation model.
type Provider interface {
	// Generate drafts a blog post body for title.
	Generate(ctx context.Context, title string) (string, error)
	// Ask answers prompt as the blogging assistant, continuing history.
	Ask(ctx context.Context, prompt string, history []Turn) (string, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, http.DefaultClient)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
