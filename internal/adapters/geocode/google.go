package geocode

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

var googleLocationScores = map[string]float64{
	"ROOFTOP":            0.95,
	"RANGE_INTERPOLATED": 0.80,
	"GEOMETRIC_CENTER":   0.55,
	"APPROXIMATE":        0.35,
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PartialMatch     bool   `json:"partial_match"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

// Google resolves addresses with the Google Geocoding API.
type Google struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

func NewGoogle(apiKey, endpoint string, timeout time.Duration) (*Google, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &domain.ConfigurationError{Key: "GOOGLE_MAPS_API_KEY", Msg: "google api key is empty"}
	}
	if endpoint == "" {
		endpoint = defaultGoogleGeocodeURL
	}
	return &Google{client: httpclient.New("google", timeout), endpoint: endpoint, apiKey: apiKey}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Geocode(ctx context.Context, query string) (_ domain.GeocodeResult, err error) {
	defer obs.Time(ctx, "geocode.google")(&err)

	q := url.Values{}
	q.Set("address", query)
	q.Set("region", "us")
	q.Set("key", g.apiKey)

	var decoded googleResponse
	if err := g.client.SendJSON(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil, &decoded); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("google geocode: %w", err)
	}

	switch decoded.Status {
	case "OK":
	case "ZERO_RESULTS":
		return notFound(g.Name()), nil
	case "REQUEST_DENIED":
		return domain.GeocodeResult{}, &domain.ProviderAuthError{Provider: g.Name(), Status: http.StatusForbidden, Body: decoded.ErrorMessage}
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return domain.GeocodeResult{}, &domain.ProviderRateLimitError{Provider: g.Name(), Body: decoded.ErrorMessage}
	default:
		return domain.GeocodeResult{}, &domain.ProviderError{
			Provider: g.Name(),
			Err:      errors.New(strings.TrimSpace(decoded.Status + " " + decoded.ErrorMessage)),
		}
	}

	if len(decoded.Results) == 0 {
		return notFound(g.Name()), nil
	}

	r := decoded.Results[0]
	tier := domain.TierApproximate
	switch r.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		tier = domain.TierExact
	}
	score := googleLocationScores[r.Geometry.LocationType]
	if r.PartialMatch {
		score -= 0.1
	}

	return domain.GeocodeResult{
		Latitude:  r.Geometry.Location.Lat,
		Longitude: r.Geometry.Location.Lng,
		Label:     r.FormattedAddress,
		Quality:   domain.MatchQuality{Tier: tier, Score: domain.ClampScore(tier, score)},
		Provider:  g.Name(),
	}, nil
}
