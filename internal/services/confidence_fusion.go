package services

import (
	"addris-route-service/internal/domain"
	"fmt"
)

const (
	defaultValidationThreshold = 0.6
	// Candidates that could not be placed keep at most half their extraction confidence.
	failedPenalty = 0.5
)

// FusionPolicy combines extraction and geocode confidence into one score.
// Implementations must be monotone non-decreasing in both inputs.
type FusionPolicy interface {
	Name() string
	Fuse(extraction, geocode float64) float64
}

// WeightedFusion is a normalized weighted average of both scores.
type WeightedFusion struct {
	ExtractionWeight float64
	GeocodeWeight    float64
}

func (WeightedFusion) Name() string { return "weighted" }

func (w WeightedFusion) Fuse(extraction, geocode float64) float64 {
	we, wg := w.ExtractionWeight, w.GeocodeWeight
	if we < 0 || wg < 0 || we+wg <= 0 {
		we, wg = 0.5, 0.5
	}
	return clamp01((we*clamp01(extraction) + wg*clamp01(geocode)) / (we + wg))
}

// MinFusion trusts the weaker of the two signals.
type MinFusion struct{}

func (MinFusion) Name() string { return "min" }

func (MinFusion) Fuse(extraction, geocode float64) float64 {
	return min(clamp01(extraction), clamp01(geocode))
}

// NewFusionPolicy returns the policy selected by FUSION_POLICY.
func NewFusionPolicy(name string, extractionWeight, geocodeWeight float64) (FusionPolicy, error) {
	switch name {
	case "", "weighted":
		return WeightedFusion{ExtractionWeight: extractionWeight, GeocodeWeight: geocodeWeight}, nil
	case "min":
		return MinFusion{}, nil
	default:
		return nil, &domain.ConfigurationError{
			Key: "FUSION_POLICY",
			Msg: fmt.Sprintf("unsupported fusion policy %q", name),
		}
	}
}

// Fusion assigns the final confidence and status of a candidate.
type Fusion struct {
	Policy    FusionPolicy
	Threshold float64
}

func NewFusion(policy FusionPolicy, threshold float64) *Fusion {
	if policy == nil {
		policy = WeightedFusion{ExtractionWeight: 0.5, GeocodeWeight: 0.5}
	}
	if threshold <= 0 {
		threshold = defaultValidationThreshold
	}
	return &Fusion{Policy: policy, Threshold: threshold}
}

// Geocoded fuses a candidate that the geocoder placed on the map.
// The candidate is validated only on an exact match that clears the threshold.
func (f *Fusion) Geocoded(raw string, parsed domain.ParsedAddress, extraction float64, geo domain.GeocodeResult) domain.AddressCandidate {
	if !geo.Found() {
		return f.Failed(raw, parsed, extraction, "No geocoding match")
	}

	score := f.Policy.Fuse(extraction, domain.ClampScore(geo.Quality.Tier, geo.Quality.Score))
	lat, lon := geo.Latitude, geo.Longitude
	if geo.Label != "" {
		parsed.ResolvedLabel = geo.Label
	}

	c := domain.AddressCandidate{
		RawText:    raw,
		Parsed:     parsed,
		Latitude:   &lat,
		Longitude:  &lon,
		Confidence: score,
		Status:     domain.StatusValidated,
	}

	switch {
	case geo.Quality.Tier != domain.TierExact:
		c.Status = domain.StatusAmbiguous
		c.Message = fmt.Sprintf("Approximate match from %s", geo.Provider)
	case score < f.Threshold:
		c.Status = domain.StatusAmbiguous
		c.Message = fmt.Sprintf("Low confidence %.2f (threshold %.2f)", score, f.Threshold)
	}
	return c
}

// Failed builds a candidate that could not be validated or geocoded.
// Its confidence never exceeds what the weakest found match would score.
func (f *Fusion) Failed(raw string, parsed domain.ParsedAddress, extraction float64, msg string) domain.AddressCandidate {
	conf := min(clamp01(extraction)*failedPenalty, f.Policy.Fuse(extraction, domain.MinMatchScore))
	return domain.AddressCandidate{
		RawText:    raw,
		Parsed:     parsed,
		Confidence: conf,
		Status:     domain.StatusFailed,
		Message:    msg,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
