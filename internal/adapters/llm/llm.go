// Package llm adapts hosted and local language models to ports.AddressLLM.
package llm

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/ports"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

type providerDefaults struct {
	baseURL  string
	model    string
	needsKey bool
}

var defaults = map[string]providerDefaults{
	"openai":    {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", needsKey: true},
	"grok":      {baseURL: "https://api.x.ai/v1", model: "grok-2-vision-latest", needsKey: true},
	"local":     {baseURL: "http://localhost:11434/v1", model: "llama3.2-vision"},
	"anthropic": {baseURL: "https://api.anthropic.com", model: "claude-3-5-haiku-latest", needsKey: true},
}

// New builds the client for opts.Provider, filling base URL and model from
// provider defaults when empty.
func New(opts Options) (ports.AddressLLM, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	d, ok := defaults[provider]
	if !ok {
		return nil, &domain.ConfigurationError{
			Key: "LLM_PROVIDER",
			Msg: fmt.Sprintf("unsupported LLM provider %q", opts.Provider),
		}
	}
	if d.needsKey && strings.TrimSpace(opts.APIKey) == "" {
		return nil, &domain.ConfigurationError{
			Key: "LLM_API_KEY",
			Msg: fmt.Sprintf("api key required for LLM provider %q", provider),
		}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = d.baseURL
	}
	model := opts.Model
	if model == "" {
		model = d.model
	}

	if provider == "anthropic" {
		return NewAnthropic(baseURL, opts.APIKey, model, opts.Timeout), nil
	}
	return NewOpenAI(provider, baseURL, opts.APIKey, model, opts.Timeout), nil
}

// imageMIME keeps an explicit image type, otherwise sniffs the bytes.
func imageMIME(image []byte, hint string) string {
	if strings.HasPrefix(hint, "image/") {
		return hint
	}
	m := mimetype.Detect(image)
	if strings.HasPrefix(m.String(), "image/") {
		return m.String()
	}
	return "image/jpeg"
}
