package llm

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const anthropicVersion = "2023-06-01"

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// Anthropic uses the Messages API.
type Anthropic struct {
	model   string
	baseURL string
	client  *httpclient.Client
}

func NewAnthropic(baseURL, apiKey, model string, timeout time.Duration) *Anthropic {
	c := httpclient.New("anthropic", timeout)
	c.MaxAttempts = 1
	c.Header.Set("x-api-key", apiKey)
	c.Header.Set("anthropic-version", anthropicVersion)
	return &Anthropic{model: model, baseURL: strings.TrimRight(baseURL, "/"), client: c}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) ExtractFromText(ctx context.Context, text string) (_ []domain.RawCandidate, err error) {
	defer obs.Time(ctx, "llm.anthropic.text")(&err)

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	content, err := a.complete(ctx, textSystemPrompt+"\n\n"+formatInstruction(), []anthropicBlock{
		{Type: "text", Text: truncateText(text)},
	})
	if err != nil {
		return nil, err
	}
	return decodeAddresses(ctx, a.Name(), content)
}

func (a *Anthropic) ExtractFromImage(ctx context.Context, image []byte, mimeType string) (_ []domain.RawCandidate, err error) {
	defer obs.Time(ctx, "llm.anthropic.image")(&err)

	if len(image) == 0 {
		return nil, &domain.ParseError{Source: a.Name(), Err: errors.New("empty image")}
	}

	content, err := a.complete(ctx, formatInstruction(), []anthropicBlock{
		{Type: "image", Source: &anthropicSource{
			Type:      "base64",
			MediaType: imageMIME(image, mimeType),
			Data:      base64.StdEncoding.EncodeToString(image),
		}},
		{Type: "text", Text: imagePrompt},
	})
	if err != nil {
		return nil, err
	}
	return decodeAddresses(ctx, a.Name(), content)
}

func (a *Anthropic) complete(ctx context.Context, system string, blocks []anthropicBlock) (string, error) {
	logger := zerolog.Ctx(ctx).With().Str("call_id", uuid.New().String()).Str("provider", a.Name()).Logger()
	start := time.Now()

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   1024,
		Temperature: 0,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: blocks}},
	}

	var resp anthropicResponse
	if err := a.client.SendJSON(ctx, http.MethodPost, a.baseURL+"/v1/messages", req, &resp); err != nil {
		logger.Warn().Err(err).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm request failed")
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &domain.ParseError{Source: a.Name(), Err: errors.New("no text content in response")}
	}

	logger.Debug().Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm response")
	return b.String(), nil
}
