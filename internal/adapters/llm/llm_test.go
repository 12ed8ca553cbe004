package llm

import (
	"addris-route-service/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func chatServer(t *testing.T, content string, inspect func(req map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inspect != nil {
			inspect(req)
		}
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIExtractFromText(t *testing.T) {
	srv := chatServer(t, `{"addresses":[{"house_number":"1","road":"Science Pk","city":"Boston","state":"MA","postcode":"02192","raw_text":"1 Science Pk, Boston, MA 02192","confidence":0.9}]}`,
		func(req map[string]any) {
			assert.Equal(t, "gpt-4o-mini", req["model"])
			msgs := req["messages"].([]any)
			require.Len(t, msgs, 2)
			assert.Contains(t, msgs[0].(map[string]any)["content"], "expert address extraction")
		})
	defer srv.Close()

	client := NewOpenAI("openai", srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	got, err := client.ExtractFromText(context.Background(), "ship to 1 Science Pk, Boston, MA 02192")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "1 Science Pk, Boston, MA 02192", got[0].RawText)
	assert.Equal(t, "Science Pk", got[0].Parsed.Road)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "openai", got[0].Source)
}

func TestOpenAIExtractFromImageSendsDataURL(t *testing.T) {
	srv := chatServer(t, "```json\n{\"addresses\":[{\"road\":\"Castle Ridge Rd\",\"city\":\"Austin\"}]}\n```",
		func(req map[string]any) {
			msgs := req["messages"].([]any)
			parts := msgs[1].(map[string]any)["content"].([]any)
			img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
			assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
		})
	defer srv.Close()

	client := NewOpenAI("local", srv.URL, "", "llama3.2-vision", time.Second)
	got, err := client.ExtractFromImage(context.Background(), pngHeader, "")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Castle Ridge Rd, Austin", got[0].RawText)
	assert.Zero(t, got[0].Confidence)
}

func TestDecodeAddressesLenientPath(t *testing.T) {
	content := `{"addresses":[{"house_number":509,"road":"Castle Ridge Rd","city":["Austin"],"confidence":"0.8"}, "junk"]}`

	got, err := decodeAddresses(context.Background(), "grok", content)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "509", got[0].Parsed.HouseNumber)
	assert.Empty(t, got[0].Parsed.City)
	assert.Equal(t, 0.8, got[0].Confidence)
}

func TestDecodeAddressesSkipsEmptyEntries(t *testing.T) {
	got, err := decodeAddresses(context.Background(), "openai", `{"addresses":[{},{"city":"Boston"}]}`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Boston", got[0].RawText)
}

func TestDecodeAddressesKeepsEntriesBeforeTruncation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"object", `{"note":"ok","addresses":[{"house_number":"12","road":"Elm St","city":"Boston","state":"MA","postcode":"02114","confidence":0.9},{"house_number":"4","road":"Oak`},
		{"bare array", `[{"house_number":"12","road":"Elm St","city":"Boston","state":"MA","postcode":"02114","confidence":0.9}, {"road":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAddresses(context.Background(), "openai", tt.content)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Elm St", got[0].Parsed.Road)
			assert.Equal(t, "02114", got[0].Parsed.Postcode)
			assert.Equal(t, 0.9, got[0].Confidence)
		})
	}

	_, err := decodeAddresses(context.Background(), "openai", `{"addresses":[{"road":"Elm`)
	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestDecodeAddressesGarbage(t *testing.T) {
	_, err := decodeAddresses(context.Background(), "openai", "I found no addresses.")
	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI("openai", srv.URL, "k", "m", time.Second).ExtractFromText(context.Background(), "text")
	var rl *domain.ProviderRateLimitError
	assert.True(t, errors.As(err, &rl))
	assert.True(t, domain.IsTransient(err))
}

func TestAnthropicExtractFromImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "image", req.Messages[0].Content[0].Type)
		assert.Equal(t, "image/jpeg", req.Messages[0].Content[0].Source.MediaType)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"addresses\":[{\"postcode\":\"78746\",\"city\":\"Austin\"}]}"}]}`))
	}))
	defer srv.Close()

	a := NewAnthropic(srv.URL, "ak", "claude", time.Second)
	got, err := a.ExtractFromImage(context.Background(), []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "78746", got[0].Parsed.Postcode)
	assert.Equal(t, "anthropic", got[0].Source)
}

func TestNewProviderSelection(t *testing.T) {
	c, err := New(Options{Provider: "grok", APIKey: "x"})
	require.NoError(t, err)
	assert.Equal(t, "grok", c.Name())
	assert.Equal(t, "https://api.x.ai/v1", c.(*OpenAI).baseURL)

	c, err = New(Options{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, "local", c.Name())

	_, err = New(Options{Provider: "openai"})
	var ce *domain.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "LLM_API_KEY", ce.Key)

	_, err = New(Options{Provider: "gemini", APIKey: "x"})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "LLM_PROVIDER", ce.Key)
}

func TestSchemaRejectsWrongTypes(t *testing.T) {
	assert.NoError(t, validateAddresses([]byte(`{"addresses":[{"road":"Main St"}]}`)))
	assert.Error(t, validateAddresses([]byte(`{"addresses":[{"road":5}]}`)))
	assert.Error(t, validateAddresses([]byte(`{"items":[]}`)))
}
