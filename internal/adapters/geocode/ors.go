package geocode

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

type orsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
			MatchType  string  `json:"match_type"`
			Accuracy   string  `json:"accuracy"`
		} `json:"properties"`
	} `json:"features"`
}

// ORS resolves addresses with OpenRouteService /geocode/search.
type ORS struct {
	client  *httpclient.Client
	baseURL string
	country string
}

func NewORS(apiKey, baseURL string, timeout time.Duration) (*ORS, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &domain.ConfigurationError{Key: "ORS_API_KEY", Msg: "ORS api key is empty"}
	}
	if baseURL == "" {
		baseURL = defaultORSBaseURL
	}

	c := httpclient.New("ors", timeout)
	c.Header.Set("Authorization", apiKey)

	return &ORS{client: c, baseURL: strings.TrimRight(baseURL, "/"), country: "US"}, nil
}

func (o *ORS) Name() string { return "ors" }

func (o *ORS) Geocode(ctx context.Context, query string) (_ domain.GeocodeResult, err error) {
	defer obs.Time(ctx, "geocode.ors")(&err)

	q := url.Values{}
	q.Set("text", query)
	q.Set("boundary.country", o.country)
	q.Set("size", "1")

	var decoded orsResponse
	if err := o.client.SendJSON(ctx, http.MethodGet, o.baseURL+"/geocode/search?"+q.Encode(), nil, &decoded); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("ors geocode %q: %w", query, err)
	}

	if len(decoded.Features) == 0 {
		return notFound(o.Name()), nil
	}

	f := decoded.Features[0]
	coords := f.Geometry.Coordinates
	if len(coords) != 2 {
		return domain.GeocodeResult{}, &domain.ParseError{
			Source: o.Name(),
			Err:    fmt.Errorf("invalid coordinate format for %q", query),
		}
	}

	tier := domain.TierApproximate
	switch f.Properties.MatchType {
	case "exact", "interpolated":
		tier = domain.TierExact
	}

	return domain.GeocodeResult{
		Latitude:  coords[1],
		Longitude: coords[0],
		Label:     f.Properties.Label,
		Quality:   domain.MatchQuality{Tier: tier, Score: domain.ClampScore(tier, f.Properties.Confidence)},
		Provider:  o.Name(),
	}, nil
}

func notFound(provider string) domain.GeocodeResult {
	return domain.GeocodeResult{
		Quality:  domain.MatchQuality{Tier: domain.TierNone},
		Provider: provider,
	}
}
