package services

import (
	"addris-route-service/internal/address"
	"addris-route-service/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeOCR struct {
	spans []domain.TextSpan
	err   error
}

func (f *fakeOCR) Name() string { return "fake_ocr" }

func (f *fakeOCR) ExtractSpans(context.Context, []byte) ([]domain.TextSpan, error) {
	return f.spans, f.err
}

// fakeLLM returns errs in order, then out.
type fakeLLM struct {
	out   []domain.RawCandidate
	errs  []error
	calls int
	texts []string
	mime  string
}

func (f *fakeLLM) Name() string { return "fake_llm" }

func (f *fakeLLM) next() ([]domain.RawCandidate, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	out := make([]domain.RawCandidate, len(f.out))
	copy(out, f.out)
	return out, nil
}

func (f *fakeLLM) ExtractFromText(_ context.Context, text string) ([]domain.RawCandidate, error) {
	f.texts = append(f.texts, text)
	return f.next()
}

func (f *fakeLLM) ExtractFromImage(_ context.Context, _ []byte, mimeType string) ([]domain.RawCandidate, error) {
	f.mime = mimeType
	return f.next()
}

func TestNewStrategySelection(t *testing.T) {
	deps := StrategyDeps{OCR: &fakeOCR{}, LLM: &fakeLLM{}}

	for _, name := range []string{StrategyVLM, StrategyOCRLLM, StrategySlidingWindow} {
		s, err := NewStrategy(StrategyConfig{Name: name}, deps)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := NewStrategy(StrategyConfig{Name: "magic"}, deps)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "EXTRACTION_STRATEGY", cfgErr.Key)

	_, err = NewStrategy(StrategyConfig{Name: StrategyVLM}, StrategyDeps{OCR: &fakeOCR{}})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestVLMStrategyDefaultsConfidence(t *testing.T) {
	llm := &fakeLLM{out: []domain.RawCandidate{
		{RawText: "12 Elm St, Boston, MA 02114"},
		{RawText: "1 Science Pk, Boston, MA 02114", Confidence: 0.95},
	}}
	s, err := NewStrategy(StrategyConfig{Name: StrategyVLM}, StrategyDeps{LLM: llm})
	require.NoError(t, err)

	out, err := s.Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "image/png", llm.mime)
	assert.InDelta(t, 0.75, out[0].Confidence, 1e-9)
	assert.InDelta(t, 0.95, out[1].Confidence, 1e-9)
	assert.Equal(t, StrategyVLM, out[0].Source)
}

func newOCRLLM(t *testing.T, ocr *fakeOCR, llm *fakeLLM) *OCRLLMStrategy {
	t.Helper()
	s, err := NewStrategy(StrategyConfig{Name: StrategyOCRLLM, RetryBackoff: time.Millisecond}, StrategyDeps{OCR: ocr, LLM: llm})
	require.NoError(t, err)
	return s.(*OCRLLMStrategy)
}

func TestOCRLLMRetriesTransientErrors(t *testing.T) {
	ocr := &fakeOCR{spans: []domain.TextSpan{
		{Text: "12 Elm St", Confidence: 0.8},
		{Text: "Boston  MA 02114", Confidence: 0.6},
	}}
	llm := &fakeLLM{
		errs: []error{
			&domain.ProviderRateLimitError{Provider: "fake_llm"},
			&domain.ProviderTimeoutError{Provider: "fake_llm", Err: context.DeadlineExceeded},
		},
		out: []domain.RawCandidate{{RawText: "12 Elm St, Boston, MA 02114"}},
	}

	out, err := newOCRLLM(t, ocr, llm).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "12 Elm St\nBoston MA 02114", llm.texts[0])
	require.Len(t, out, 1)
	assert.InDelta(t, 0.7, out[0].Confidence, 1e-9)
	assert.Equal(t, StrategyOCRLLM, out[0].Source)
}

func TestOCRLLMGivesUpOnPermanentError(t *testing.T) {
	llm := &fakeLLM{errs: []error{&domain.ProviderAuthError{Provider: "fake_llm", Status: 401}}}

	out, err := newOCRLLM(t, &fakeOCR{}, llm).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, llm.calls)
}

func TestOCRLLMStopsAfterMaxAttempts(t *testing.T) {
	transient := &domain.ProviderError{Provider: "fake_llm", Status: 503}
	llm := &fakeLLM{errs: []error{transient, transient, transient, transient}}

	out, err := newOCRLLM(t, &fakeOCR{}, llm).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 3, llm.calls)
}

func TestOCRLLMContinuesWithEmptyTextWhenOCRFails(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("tesseract crashed")}
	llm := &fakeLLM{}

	_, err := newOCRLLM(t, ocr, llm).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	require.Len(t, llm.texts, 1)
	assert.Equal(t, "", llm.texts[0])
}

func TestOCRLLMPropagatesConfigurationError(t *testing.T) {
	llm := &fakeLLM{errs: []error{&domain.ConfigurationError{Key: "LLM_API_KEY", Msg: "missing"}}}

	_, err := newOCRLLM(t, &fakeOCR{}, llm).Extract(context.Background(), pngHeader)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func newWindowStrategy(t *testing.T, ocr *fakeOCR, maxWindow int) *SlidingWindowStrategy {
	t.Helper()
	s, err := NewStrategy(StrategyConfig{Name: StrategySlidingWindow, MaxWindow: maxWindow}, StrategyDeps{
		OCR:        ocr,
		Normalizer: address.NewNormalizer(address.DefaultCompleteness(), 0.5),
	})
	require.NoError(t, err)
	return s.(*SlidingWindowStrategy)
}

func TestSlidingWindowKeepsBestWindowPerAddress(t *testing.T) {
	ocr := &fakeOCR{spans: []domain.TextSpan{
		{Text: "12 Elm St Boston MA 02114", Confidence: 0.5},
		{Text: "12 Elm St Boston MA 02114", Confidence: 0.9},
	}}

	out, err := newWindowStrategy(t, ocr, 6).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	want := address.CanonicalKey(address.Parse("12 Elm St, Boston, MA 02114"))
	keys := make(map[string]int)
	var full *domain.RawCandidate
	for i := range out {
		require.NotNil(t, out[i].Parsed)
		key := address.CanonicalKey(*out[i].Parsed)
		keys[key]++
		if key == want {
			full = &out[i]
		}
		assert.LessOrEqual(t, out[i].Confidence, 0.9+1e-9)
		assert.Equal(t, StrategySlidingWindow, out[i].Source)
	}

	for k, n := range keys {
		assert.Equal(t, 1, n, "address %q emitted more than once", k)
	}
	require.NotNil(t, full, "complete address not found in %+v", out)
	assert.InDelta(t, 0.9, full.Confidence, 1e-9)
	assert.Equal(t, "12 Elm St Boston MA 02114", full.RawText)
}

func TestSlidingWindowDiscardsNonAddresses(t *testing.T) {
	ocr := &fakeOCR{spans: []domain.TextSpan{{Text: "thank you for your business, see you again soon", Confidence: 0.99}}}

	out, err := newWindowStrategy(t, ocr, 0).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSlidingWindowOCRFailureYieldsNothing(t *testing.T) {
	out, err := newWindowStrategy(t, &fakeOCR{err: errors.New("no engine")}, 0).Extract(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSlidingWindowTokenCap(t *testing.T) {
	s := newWindowStrategy(t, &fakeOCR{}, 0)
	s.MaxTokens = 3

	toks := s.tokens([]domain.TextSpan{
		{Text: "12 Elm", Confidence: 0.4},
		{Text: "St  Boston MA", Confidence: 2},
	})
	require.Len(t, toks, 3)
	assert.Equal(t, token{text: "St", conf: 1}, toks[2])
}

func TestWindowTieBreak(t *testing.T) {
	base := window{start: 3, size: 5, score: 0.8}

	assert.True(t, better(window{start: 9, size: 4, score: 0.81}, base), "higher score wins")
	assert.True(t, better(window{start: 9, size: 6, score: 0.8}, base), "longer window wins a tie")
	assert.True(t, better(window{start: 1, size: 5, score: 0.8}, base), "earlier start wins a full tie")
	assert.False(t, better(window{start: 4, size: 5, score: 0.8}, base))
}
