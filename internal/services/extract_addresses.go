package services

import (
	"addris-route-service/internal/address"
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/platform/obs"
	"addris-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultGeocodeConcurrency = 4

// Extractor turns an uploaded image into fused address candidates:
// strategy → normalize → geocode → fuse, one candidate at a time.
type Extractor struct {
	Strategy    ports.ExtractionStrategy
	Normalizer  *address.Normalizer
	Geocoder    ports.Geocoder
	Fusion      *Fusion
	Concurrency int
	Events      ports.EventPublisher
	Metrics     *metrics.Collector
}

// Summary published after every extraction.
type ExtractionEvent struct {
	RequestID  string         `json:"request_id,omitempty"`
	Strategy   string         `json:"strategy"`
	Candidates int            `json:"candidates"`
	Statuses   map[string]int `json:"statuses"`
	DurationMs int64          `json:"duration_ms"`
}

// Extract runs the configured strategy over image. Only configuration
// errors and unusable input fail the call; provider trouble is reported per
// candidate.
func (e *Extractor) Extract(ctx context.Context, image []byte) (out []domain.AddressCandidate, err error) {
	defer obs.Time(ctx, "extractor.Extract")(&err)

	start := time.Now()
	l := zerolog.Ctx(ctx).With().Str("strategy", e.Strategy.Name()).Logger()
	l.Info().Str("state", "RECEIVED").Int("bytes", len(image)).Msg("extraction")

	if err := checkImage(image); err != nil {
		l.Warn().Str("state", "EXTRACTION_FAILED").Err(err).Msg("extraction")
		return nil, err
	}

	l.Info().Str("state", "EXTRACTING").Msg("extraction")
	raws, err := e.Strategy.Extract(ctx, image)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			l.Error().Str("state", "EXTRACTION_FAILED").Err(err).Msg("extraction")
			return nil, err
		}
		l.Warn().Err(err).Msg("strategy failed, returning no candidates")
		raws = nil
	}

	out, err = e.process(ctx, raws)
	if err != nil {
		l.Error().Str("state", "EXTRACTION_FAILED").Err(err).Msg("extraction")
		return nil, err
	}
	out = dedupCandidates(out)

	statuses := make(map[string]int, 3)
	for _, c := range out {
		statuses[string(c.Status)]++
		e.Metrics.IncCandidate(string(c.Status))
	}

	l.Info().
		Str("state", "EXTRACTED").
		Int("raw", len(raws)).
		Int("candidates", len(out)).
		Int("validated", statuses[string(domain.StatusValidated)]).
		Msg("extraction")

	e.publish(ctx, ExtractionEvent{
		RequestID:  obs.RequestID(ctx),
		Strategy:   e.Strategy.Name(),
		Candidates: len(out),
		Statuses:   statuses,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return out, nil
}

func checkImage(image []byte) error {
	if len(image) == 0 {
		return &domain.ParseError{Source: "image", Err: errors.New("empty upload")}
	}
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return &domain.ParseError{Source: "image", Err: fmt.Errorf("unsupported content type %s", mt.String())}
	}
	return nil
}

// process post-processes candidates concurrently; results keep input order.
func (e *Extractor) process(ctx context.Context, raws []domain.RawCandidate) ([]domain.AddressCandidate, error) {
	out := make([]domain.AddressCandidate, len(raws))

	limit := e.Concurrency
	if limit <= 0 {
		limit = defaultGeocodeConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, raw := range raws {
		g.Go(func() error {
			out[i] = e.candidate(ctx, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: process candidates: %w", err)
	}
	return out, nil
}

func (e *Extractor) candidate(ctx context.Context, raw domain.RawCandidate) domain.AddressCandidate {
	var res address.Result
	if raw.Parsed != nil {
		res = e.Normalizer.Validate(*raw.Parsed, raw.RawText)
	} else {
		res = e.Normalizer.Normalize(raw.RawText)
	}

	if !res.Valid {
		return e.Fusion.Failed(raw.RawText, res.Address, raw.Confidence, res.Reason)
	}

	geo, err := e.geocode(ctx, address.QueryVariants(res.Address, raw.RawText))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("raw", raw.RawText).Msg("geocoding failed")
		return e.Fusion.Failed(raw.RawText, res.Address, raw.Confidence, geocodeMessage(err))
	}
	if !geo.Found() {
		return e.Fusion.Failed(raw.RawText, res.Address, raw.Confidence, "No geocoding match")
	}
	return e.Fusion.Geocoded(raw.RawText, res.Address, raw.Confidence, geo)
}

func (e *Extractor) geocode(ctx context.Context, queries []string) (domain.GeocodeResult, error) {
	if vg, ok := e.Geocoder.(ports.VariantGeocoder); ok {
		return vg.GeocodeFirst(ctx, queries)
	}

	var errs []error
	for _, q := range queries {
		r, err := e.Geocoder.Geocode(ctx, q)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r.Found() {
			return r, nil
		}
	}
	if len(errs) == len(queries) && len(errs) > 0 {
		return domain.GeocodeResult{}, errors.Join(errs...)
	}
	return domain.GeocodeResult{Quality: domain.MatchQuality{Tier: domain.TierNone}}, nil
}

func geocodeMessage(err error) string {
	var (
		timeout *domain.ProviderTimeoutError
		auth    *domain.ProviderAuthError
		limited *domain.ProviderRateLimitError
	)
	switch {
	case errors.As(err, &timeout):
		return "Geocoding timed out"
	case errors.As(err, &auth):
		return "Geocoding provider rejected credentials"
	case errors.As(err, &limited):
		return "Geocoding provider rate limited"
	default:
		return "Geocoding failed"
	}
}

// dedupCandidates collapses candidates that resolve to the same place,
// keeping the higher confidence at the position of the first occurrence.
func dedupCandidates(in []domain.AddressCandidate) []domain.AddressCandidate {
	idx := make(map[string]int, len(in))
	out := make([]domain.AddressCandidate, 0, len(in))
	for _, c := range in {
		key := candidateKey(c)
		if key == "" {
			out = append(out, c)
			continue
		}
		if i, ok := idx[key]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		idx[key] = len(out)
		out = append(out, c)
	}
	return out
}

func candidateKey(c domain.AddressCandidate) string {
	if l := strings.ToLower(strings.TrimSpace(c.Parsed.ResolvedLabel)); l != "" {
		return "label:" + l
	}
	if k := address.CanonicalKey(c.Parsed); k != "" {
		return "parsed:" + k
	}
	if t := strings.ToLower(strings.Join(strings.Fields(c.RawText), " ")); t != "" {
		return "raw:" + t
	}
	return ""
}

func (e *Extractor) publish(ctx context.Context, ev ExtractionEvent) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Publish(ctx, "extraction.completed", ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("publish extraction event")
	}
}
