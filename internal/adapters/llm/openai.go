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

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI talks to any OpenAI-compatible chat/completions endpoint: OpenAI
// itself, xAI Grok and a local Ollama server.
type OpenAI struct {
	name    string
	model   string
	baseURL string
	client  *httpclient.Client
}

// NewOpenAI builds a client; apiKey may be empty for local servers.
func NewOpenAI(name, baseURL, apiKey, model string, timeout time.Duration) *OpenAI {
	c := httpclient.New(name, timeout)
	// retries are owned by the extraction strategy
	c.MaxAttempts = 1
	if apiKey != "" {
		c.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return &OpenAI{
		name:    name,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  c,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) ExtractFromText(ctx context.Context, text string) (_ []domain.RawCandidate, err error) {
	defer obs.Time(ctx, "llm."+o.name+".text")(&err)

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	content, err := o.complete(ctx, []chatMessage{
		{Role: "system", Content: textSystemPrompt + "\n\n" + formatInstruction()},
		{Role: "user", Content: truncateText(text)},
	})
	if err != nil {
		return nil, err
	}
	return decodeAddresses(ctx, o.name, content)
}

func (o *OpenAI) ExtractFromImage(ctx context.Context, image []byte, mimeType string) (_ []domain.RawCandidate, err error) {
	defer obs.Time(ctx, "llm."+o.name+".image")(&err)

	if len(image) == 0 {
		return nil, &domain.ParseError{Source: o.name, Err: errors.New("empty image")}
	}

	dataURL := "data:" + imageMIME(image, mimeType) + ";base64," + base64.StdEncoding.EncodeToString(image)
	content, err := o.complete(ctx, []chatMessage{
		{Role: "system", Content: formatInstruction()},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: imagePrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAddresses(ctx, o.name, content)
}

func (o *OpenAI) complete(ctx context.Context, messages []chatMessage) (string, error) {
	callID := uuid.New().String()
	logger := zerolog.Ctx(ctx).With().Str("call_id", callID).Str("provider", o.name).Str("model", o.model).Logger()
	start := time.Now()

	req := chatRequest{
		Model:          o.model,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages:       messages,
	}

	var resp chatResponse
	if err := o.client.SendJSON(ctx, http.MethodPost, o.baseURL+"/chat/completions", req, &resp); err != nil {
		logger.Warn().Err(err).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm request failed")
		return "", fmt.Errorf("%s chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ParseError{Source: o.name, Err: errors.New("no choices in response")}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.Debug().
		Int("content_len", len(content)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("llm response")
	return content, nil
}
