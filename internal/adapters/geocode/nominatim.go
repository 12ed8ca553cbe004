package geocode

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	// place_rank 26+ covers streets' house-level objects and buildings
	nominatimExactRank = 26
)

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
	PlaceRank   int     `json:"place_rank"`
}

// Nominatim is the free OpenStreetMap geocoder. It needs no key but
// requires an identifying User-Agent.
type Nominatim struct {
	client  *httpclient.Client
	baseURL string
	email   string
}

func NewNominatim(baseURL, email string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = defaultNominatimBaseURL
	}

	c := httpclient.New("nominatim", timeout)
	c.MaxAttempts = 3
	ua := "addris-route-service/1.0"
	if email != "" {
		ua += " (" + email + ")"
	}
	c.Header.Set("User-Agent", ua)

	return &Nominatim{client: c, baseURL: strings.TrimRight(baseURL, "/"), email: email}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Geocode(ctx context.Context, query string) (_ domain.GeocodeResult, err error) {
	defer obs.Time(ctx, "geocode.nominatim")(&err)

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	q.Set("q", query)
	if n.email != "" {
		q.Set("email", n.email)
	}

	var places []nominatimPlace
	if err := n.client.SendJSON(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil, &places); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim geocode: %w", err)
	}

	if len(places) == 0 {
		return notFound(n.Name()), nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeResult{}, &domain.ParseError{Source: n.Name(), Err: fmt.Errorf("lat %q: %w", p.Lat, err)}
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeResult{}, &domain.ParseError{Source: n.Name(), Err: fmt.Errorf("lon %q: %w", p.Lon, err)}
	}

	tier := domain.TierApproximate
	if p.PlaceRank >= nominatimExactRank {
		tier = domain.TierExact
	}

	return domain.GeocodeResult{
		Latitude:  lat,
		Longitude: lon,
		Label:     p.DisplayName,
		Quality:   domain.MatchQuality{Tier: tier, Score: domain.ClampScore(tier, p.Importance)},
		Provider:  n.Name(),
	}, nil
}
