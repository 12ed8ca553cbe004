package distance

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRouteMatrixURL = "https://routes.googleapis.com/distanceMatrix/v2:computeRouteMatrix"
	routeMatrixFieldMask  = "originIndex,destinationIndex,distanceMeters,duration,staticDuration,condition,travelAdvisory.tollInfo"
	// Routes API limit on origins x destinations for traffic-aware requests.
	maxGoogleMatrixNodes = 25
)

var reProtoDuration = regexp.MustCompile(`^-?\d+(\.\d+)?s$`)

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type matrixWaypoint struct {
	Waypoint struct {
		Location struct {
			LatLng latLng `json:"latLng"`
		} `json:"location"`
	} `json:"waypoint"`
}

type routeMatrixRequest struct {
	Origins           []matrixWaypoint `json:"origins"`
	Destinations      []matrixWaypoint `json:"destinations"`
	TravelMode        string           `json:"travelMode"`
	RoutingPreference string           `json:"routingPreference"`
	ExtraComputations []string         `json:"extraComputations,omitempty"`
}

type money struct {
	CurrencyCode string          `json:"currencyCode"`
	Units        json.RawMessage `json:"units"`
	Nanos        int64           `json:"nanos"`
}

// proto3 JSON omits zero values, so a missing index means 0.
type routeMatrixElement struct {
	OriginIndex      int             `json:"originIndex"`
	DestinationIndex int             `json:"destinationIndex"`
	DistanceMeters   *float64        `json:"distanceMeters"`
	Duration         json.RawMessage `json:"duration"`
	StaticDuration   json.RawMessage `json:"staticDuration"`
	Condition        string          `json:"condition"`
	TravelAdvisory   *struct {
		TollInfo *struct {
			EstimatedPrice []money `json:"estimatedPrice"`
		} `json:"tollInfo"`
	} `json:"travelAdvisory"`
}

// GoogleRoutes implements DistanceMatrixProvider with the Routes API
// computeRouteMatrix method. With traffic enabled durations reflect live
// conditions and staticDuration holds the traffic-free estimate.
type GoogleRoutes struct {
	client     *httpclient.Client
	endpoint   string
	useTraffic bool
}

func NewGoogleRoutes(apiKey, endpoint string, useTraffic bool, timeout time.Duration) (*GoogleRoutes, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &domain.ConfigurationError{Key: "GOOGLE_MAPS_API_KEY", Msg: "google api key is empty"}
	}
	if endpoint == "" {
		endpoint = defaultRouteMatrixURL
	}

	c := httpclient.New("google", timeout)
	c.MaxAttempts = 2
	c.Header.Set("X-Goog-Api-Key", apiKey)
	c.Header.Set("X-Goog-FieldMask", routeMatrixFieldMask)

	return &GoogleRoutes{client: c, endpoint: endpoint, useTraffic: useTraffic}, nil
}

func (g *GoogleRoutes) Name() string { return "google" }

func (g *GoogleRoutes) Matrix(ctx context.Context, points []domain.Stop) (_ domain.DistanceMatrix, err error) {
	defer obs.Time(ctx, "google.Matrix")(&err)

	n := len(points)
	out := domain.NewDistanceMatrix(n, g.Name())
	out.UsesLiveTraffic = g.useTraffic
	if n == 0 {
		return out, nil
	}
	if n > maxGoogleMatrixNodes {
		return domain.DistanceMatrix{}, &domain.ProviderError{
			Provider: g.Name(),
			Err:      fmt.Errorf("%d points exceeds matrix limit of %d", n, maxGoogleMatrixNodes),
		}
	}

	payload, err := json.Marshal(g.buildRequest(points))
	if err != nil {
		return domain.DistanceMatrix{}, fmt.Errorf("marshal route matrix request: %w", err)
	}

	body, err := g.client.Send(ctx, http.MethodPost, g.endpoint, payload)
	if err != nil {
		return domain.DistanceMatrix{}, fmt.Errorf("route matrix request: %w", err)
	}

	elements, err := parseRouteMatrix(body)
	if err != nil {
		return domain.DistanceMatrix{}, &domain.ParseError{Source: g.Name(), Err: err}
	}
	if len(elements) != n*n {
		return domain.DistanceMatrix{}, &domain.ParseError{
			Source: g.Name(),
			Err:    fmt.Errorf("route matrix incomplete: expected %d elements, received %d", n*n, len(elements)),
		}
	}

	for _, e := range elements {
		if err := fillElement(&out, e); err != nil {
			return domain.DistanceMatrix{}, err
		}
	}

	return out, nil
}

func (g *GoogleRoutes) buildRequest(points []domain.Stop) routeMatrixRequest {
	waypoints := make([]matrixWaypoint, len(points))
	for i, p := range points {
		waypoints[i].Waypoint.Location.LatLng = latLng{Latitude: p.Latitude, Longitude: p.Longitude}
	}

	req := routeMatrixRequest{
		Origins:           waypoints,
		Destinations:      waypoints,
		TravelMode:        "DRIVE",
		RoutingPreference: "TRAFFIC_UNAWARE",
		ExtraComputations: []string{"TOLLS"},
	}
	if g.useTraffic {
		req.RoutingPreference = "TRAFFIC_AWARE_OPTIMAL"
	}
	return req
}

func fillElement(m *domain.DistanceMatrix, e routeMatrixElement) error {
	n := m.Size()
	i, j := e.OriginIndex, e.DestinationIndex
	if i < 0 || i >= n || j < 0 || j >= n {
		return &domain.ParseError{Source: m.Provider, Err: fmt.Errorf("index out of range: %d -> %d", i, j)}
	}

	if e.Condition != "" && e.Condition != "ROUTE_EXISTS" {
		return &domain.ProviderError{Provider: m.Provider, Err: fmt.Errorf("no route %d -> %d: %s", i, j, e.Condition)}
	}

	var meters float64
	switch {
	case e.DistanceMeters != nil:
		meters = *e.DistanceMeters
	case i != j:
		return &domain.ParseError{Source: m.Provider, Err: fmt.Errorf("missing distance %d -> %d", i, j)}
	}

	seconds, ok, err := parseDurationSeconds(e.Duration)
	if err != nil {
		return &domain.ParseError{Source: m.Provider, Err: fmt.Errorf("duration %d -> %d: %w", i, j, err)}
	}
	if !ok && i != j {
		return &domain.ParseError{Source: m.Provider, Err: fmt.Errorf("missing duration %d -> %d", i, j)}
	}

	static, ok, err := parseDurationSeconds(e.StaticDuration)
	if err != nil {
		return &domain.ParseError{Source: m.Provider, Err: fmt.Errorf("static duration %d -> %d: %w", i, j, err)}
	}
	if !ok {
		static = seconds
	}

	m.Distances[i][j] = int(math.Round(meters))
	m.Durations[i][j] = seconds
	m.StaticDurations[i][j] = static

	if e.TravelAdvisory != nil && e.TravelAdvisory.TollInfo != nil {
		toll := &domain.TollInfo{}
		if prices := e.TravelAdvisory.TollInfo.EstimatedPrice; len(prices) > 0 {
			toll.Currency = prices[0].CurrencyCode
			toll.Cost = moneyValue(prices[0])
		}
		m.Tolls[i][j] = toll
	}

	return nil
}

// parseRouteMatrix accepts the streamed forms the Routes API produces: a JSON
// array, newline-delimited objects, a {"matrixEntries": [...]} wrapper, any
// of them behind the )]}' XSSI prefix.
func parseRouteMatrix(body []byte) ([]routeMatrixElement, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte(")]}'"))

	dec := json.NewDecoder(bytes.NewReader(body))
	var out []routeMatrixElement

	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode route matrix: %w", err)
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		switch raw[0] {
		case '[':
			var elems []routeMatrixElement
			if err := json.Unmarshal(raw, &elems); err != nil {
				return nil, fmt.Errorf("decode route matrix array: %w", err)
			}
			out = append(out, elems...)
		case '{':
			var wrapper struct {
				MatrixEntries []routeMatrixElement `json:"matrixEntries"`
			}
			if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.MatrixEntries != nil {
				out = append(out, wrapper.MatrixEntries...)
				continue
			}
			var elem routeMatrixElement
			if err := json.Unmarshal(raw, &elem); err != nil {
				return nil, fmt.Errorf("decode route matrix element: %w", err)
			}
			out = append(out, elem)
		default:
			return nil, fmt.Errorf("unexpected route matrix value %q", truncate(string(raw), 32))
		}
	}

	return out, nil
}

// parseDurationSeconds reads "123s" strings, bare numbers and
// {"seconds","nanos"} objects. ok is false when the value is absent.
func parseDurationSeconds(raw json.RawMessage) (seconds int, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		s = strings.TrimSpace(s)
		if reProtoDuration.MatchString(s) {
			s = strings.TrimSuffix(s, "s")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid duration %q", s)
		}
		return int(math.Round(f)), true, nil
	case '{':
		var d struct {
			Seconds json.Number `json:"seconds"`
			Nanos   float64     `json:"nanos"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return 0, false, err
		}
		var secs float64
		if d.Seconds != "" {
			secs, err = d.Seconds.Float64()
			if err != nil {
				return 0, false, fmt.Errorf("invalid duration seconds %q", d.Seconds)
			}
		}
		return int(math.Round(secs + d.Nanos/1e9)), true, nil
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, false, err
		}
		return int(math.Round(f)), true, nil
	}
}

// moneyValue converts google.type.Money; units is an int64 and arrives as a
// JSON string.
func moneyValue(m money) float64 {
	units := strings.Trim(string(bytes.TrimSpace(m.Units)), `"`)
	var u float64
	if units != "" {
		u, _ = strconv.ParseFloat(units, 64)
	}
	return u + float64(m.Nanos)/1e9
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
