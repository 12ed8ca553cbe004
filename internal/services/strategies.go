package services

import (
	"addris-route-service/internal/address"
	"addris-route-service/internal/domain"
	"addris-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

const (
	StrategyVLM           = "vlm"
	StrategyOCRLLM        = "ocr_llm"
	StrategySlidingWindow = "ocr_sliding_window"

	defaultVLMConfidence   = 0.75
	defaultLLMAttempts     = 3
	defaultRetryBackoff    = 200 * time.Millisecond
	defaultMinWindow       = 4
	defaultMaxWindow       = 12
	defaultMaxTokens       = 400
	defaultMinCompleteness = 0.5
)

// StrategyConfig holds the knobs of the extraction strategies.
type StrategyConfig struct {
	Name              string
	DefaultConfidence float64
	LLMMaxAttempts    int
	RetryBackoff      time.Duration
	MinCompleteness   float64
	MinWindow         int
	MaxWindow         int
	MaxTokens         int
}

// StrategyDeps are the adapters a strategy may need. Only the ones used by
// the selected strategy must be set.
type StrategyDeps struct {
	OCR        ports.TextExtractor
	LLM        ports.AddressLLM
	Normalizer *address.Normalizer
}

// NewStrategy returns the extraction strategy named by cfg.Name.
func NewStrategy(cfg StrategyConfig, deps StrategyDeps) (ports.ExtractionStrategy, error) {
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence > 1 {
		cfg.DefaultConfidence = defaultVLMConfidence
	}

	switch cfg.Name {
	case StrategyVLM:
		if deps.LLM == nil {
			return nil, &domain.ConfigurationError{Key: "LLM_PROVIDER", Msg: "vlm strategy needs a language model"}
		}
		return &VLMStrategy{LLM: deps.LLM, DefaultConfidence: cfg.DefaultConfidence}, nil

	case StrategyOCRLLM:
		if deps.OCR == nil || deps.LLM == nil {
			return nil, &domain.ConfigurationError{Key: "EXTRACTION_STRATEGY", Msg: "ocr_llm strategy needs OCR and a language model"}
		}
		s := &OCRLLMStrategy{
			OCR:               deps.OCR,
			LLM:               deps.LLM,
			MaxAttempts:       cfg.LLMMaxAttempts,
			Backoff:           cfg.RetryBackoff,
			DefaultConfidence: cfg.DefaultConfidence,
		}
		if s.MaxAttempts <= 0 {
			s.MaxAttempts = defaultLLMAttempts
		}
		if s.Backoff <= 0 {
			s.Backoff = defaultRetryBackoff
		}
		return s, nil

	case StrategySlidingWindow, "":
		if deps.OCR == nil {
			return nil, &domain.ConfigurationError{Key: "OCR_BACKEND", Msg: "sliding window strategy needs OCR"}
		}
		s := &SlidingWindowStrategy{
			OCR:             deps.OCR,
			Normalizer:      deps.Normalizer,
			MinCompleteness: cfg.MinCompleteness,
			MinWindow:       cfg.MinWindow,
			MaxWindow:       cfg.MaxWindow,
			MaxTokens:       cfg.MaxTokens,
		}
		if s.Normalizer == nil {
			s.Normalizer = address.NewNormalizer(address.DefaultCompleteness(), defaultMinCompleteness)
		}
		if s.MinCompleteness <= 0 {
			s.MinCompleteness = defaultMinCompleteness
		}
		if s.MinWindow <= 0 {
			s.MinWindow = defaultMinWindow
		}
		if s.MaxWindow < s.MinWindow {
			s.MaxWindow = max(defaultMaxWindow, s.MinWindow)
		}
		if s.MaxTokens <= 0 {
			s.MaxTokens = defaultMaxTokens
		}
		return s, nil

	default:
		return nil, &domain.ConfigurationError{
			Key: "EXTRACTION_STRATEGY",
			Msg: fmt.Sprintf("unsupported extraction strategy %q", cfg.Name),
		}
	}
}

// VLMStrategy reads addresses straight from the image with a multimodal model.
type VLMStrategy struct {
	LLM               ports.AddressLLM
	DefaultConfidence float64
}

func (s *VLMStrategy) Name() string { return StrategyVLM }

func (s *VLMStrategy) Extract(ctx context.Context, image []byte) ([]domain.RawCandidate, error) {
	mime := mimetype.Detect(image).String()
	out, err := s.LLM.ExtractFromImage(ctx, image, mime)
	if err != nil {
		return nil, fmt.Errorf("vlm extract: %w", err)
	}
	for i := range out {
		if out[i].Confidence <= 0 {
			out[i].Confidence = s.DefaultConfidence
		}
		out[i].Source = StrategyVLM
	}
	return out, nil
}

// OCRLLMStrategy runs OCR over the whole image and lets a language model
// structure the text. Transient model errors are retried with backoff.
type OCRLLMStrategy struct {
	OCR               ports.TextExtractor
	LLM               ports.AddressLLM
	MaxAttempts       int
	Backoff           time.Duration
	DefaultConfidence float64
}

func (s *OCRLLMStrategy) Name() string { return StrategyOCRLLM }

func (s *OCRLLMStrategy) Extract(ctx context.Context, image []byte) ([]domain.RawCandidate, error) {
	l := zerolog.Ctx(ctx)

	spans, err := s.OCR.ExtractSpans(ctx, image)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		l.Warn().Err(err).Str("ocr", s.OCR.Name()).Msg("ocr failed, continuing with empty text")
		spans = nil
	}

	lines := make([]string, 0, len(spans))
	var confSum float64
	for _, sp := range spans {
		lines = append(lines, sp.Text)
		confSum += sp.Confidence
	}
	text := address.NormalizeOCRText(strings.Join(lines, "\n"))

	fallback := s.DefaultConfidence
	if len(spans) > 0 && confSum > 0 {
		fallback = clamp01(confSum / float64(len(spans)))
	}

	var out []domain.RawCandidate
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		out, err = s.LLM.ExtractFromText(ctx, text)
		if err == nil {
			break
		}

		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		if !domain.IsTransient(err) || attempt == s.MaxAttempts {
			l.Warn().Err(err).Int("attempt", attempt).Str("llm", s.LLM.Name()).Msg("llm extraction gave up")
			return nil, nil
		}

		wait := s.Backoff << (attempt - 1)
		l.Debug().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("llm extraction retry")
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}
	}

	for i := range out {
		if out[i].Confidence <= 0 {
			out[i].Confidence = fallback
		}
		out[i].Source = StrategyOCRLLM
	}
	return out, nil
}

// SlidingWindowStrategy scans OCR tokens with windows of MinWindow..MaxWindow
// tokens and keeps the windows that normalize to a complete address.
type SlidingWindowStrategy struct {
	OCR             ports.TextExtractor
	Normalizer      *address.Normalizer
	MinCompleteness float64
	MinWindow       int
	MaxWindow       int
	MaxTokens       int
}

type token struct {
	text string
	conf float64
}

type window struct {
	start, size int
	score       float64
	cand        domain.RawCandidate
}

func (s *SlidingWindowStrategy) Name() string { return StrategySlidingWindow }

func (s *SlidingWindowStrategy) Extract(ctx context.Context, image []byte) ([]domain.RawCandidate, error) {
	spans, err := s.OCR.ExtractSpans(ctx, image)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("ocr", s.OCR.Name()).Msg("ocr failed, no windows to scan")
		return nil, nil
	}

	return s.scan(s.tokens(spans)), nil
}

func (s *SlidingWindowStrategy) tokens(spans []domain.TextSpan) []token {
	var toks []token
	for _, sp := range spans {
		for _, t := range address.Tokenize(sp.Text) {
			if len(toks) == s.MaxTokens {
				return toks
			}
			toks = append(toks, token{text: t, conf: clamp01(sp.Confidence)})
		}
	}
	return toks
}

// scan normalizes every window and keeps the best window per address.
// A stream shorter than MinWindow is scanned as one window.
func (s *SlidingWindowStrategy) scan(toks []token) []domain.RawCandidate {
	if len(toks) == 0 {
		return nil
	}

	best := make(map[string]window)
	var keys []string

	minSize := min(s.MinWindow, len(toks))
	for start := 0; start < len(toks); start++ {
		for size := minSize; size <= s.MaxWindow && start+size <= len(toks); size++ {
			w, ok := s.evaluate(toks, start, size)
			if !ok {
				continue
			}
			key := address.CanonicalKey(*w.cand.Parsed)
			cur, seen := best[key]
			if !seen {
				keys = append(keys, key)
				best[key] = w
				continue
			}
			if better(w, cur) {
				best[key] = w
			}
		}
	}

	out := make([]domain.RawCandidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k].cand)
	}
	return out
}

func (s *SlidingWindowStrategy) evaluate(toks []token, start, size int) (window, bool) {
	parts := make([]string, size)
	var confSum float64
	for i := 0; i < size; i++ {
		parts[i] = toks[start+i].text
		confSum += toks[start+i].conf
	}
	text := strings.Join(parts, " ")

	res := s.Normalizer.Normalize(text)
	if !res.Valid || res.Score < s.MinCompleteness {
		return window{}, false
	}

	score := clamp01(res.Score * confSum / float64(size))
	parsed := res.Address
	return window{
		start: start,
		size:  size,
		score: score,
		cand: domain.RawCandidate{
			RawText:    text,
			Parsed:     &parsed,
			Confidence: score,
			Source:     StrategySlidingWindow,
		},
	}, true
}

// better orders windows by score, then length, then earlier start.
func better(a, b window) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.size != b.size {
		return a.size > b.size
	}
	return a.start < b.start
}
