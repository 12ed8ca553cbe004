package ocr

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
)

const defaultEasyOCRConfidence = 0.5

type easyOCRRequest struct {
	Image     string   `json:"image"`
	Languages []string `json:"languages"`
	Paragraph bool     `json:"paragraph"`
}

type easyOCRResponse struct {
	Results []struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	} `json:"results"`
}

// EasyOCR calls an EasyOCR sidecar over HTTP (POST /readtext with a base64
// image). Results keep the sidecar's reading order.
type EasyOCR struct {
	client  *httpclient.Client
	baseURL string
}

func NewEasyOCR(baseURL string, timeout time.Duration) *EasyOCR {
	c := httpclient.New("easyocr", timeout)
	c.MaxAttempts = 2
	return &EasyOCR{client: c, baseURL: strings.TrimRight(baseURL, "/")}
}

func (e *EasyOCR) Name() string { return "easyocr" }

func (e *EasyOCR) ExtractSpans(ctx context.Context, image []byte) (_ []domain.TextSpan, err error) {
	defer obs.Time(ctx, "ocr.easyocr")(&err)

	if len(image) == 0 {
		return nil, &domain.ParseError{Source: e.Name(), Err: errors.New("empty image")}
	}

	req := easyOCRRequest{
		Image:     base64.StdEncoding.EncodeToString(image),
		Languages: []string{"en"},
		Paragraph: true,
	}

	var decoded easyOCRResponse
	if err := e.client.SendJSON(ctx, http.MethodPost, e.baseURL+"/readtext", req, &decoded); err != nil {
		return nil, fmt.Errorf("easyocr readtext: %w", err)
	}

	spans := make([]domain.TextSpan, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		conf := defaultEasyOCRConfidence
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		spans = append(spans, domain.TextSpan{Text: text, Confidence: clamp01(conf)})
		if len(spans) == maxLines {
			break
		}
	}
	return spans, nil
}
