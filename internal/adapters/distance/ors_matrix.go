package distance

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/httpclient"
	"addris-route-service/internal/platform/obs"
	"addris-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// ORS implements DistanceMatrixProvider using the OpenRouteService matrix
// endpoint. It has no traffic model and no toll data.
//
// Rows are cached per origin in a DistanceCache keyed by coordinate strings;
// only rows with a cache miss are requested. The provider is safe for
// concurrent use.
type ORS struct {
	client  *httpclient.Client
	baseURL string
	profile string
	cache   ports.DistanceCache
}

// NewORS builds the provider. cache may be nil.
func NewORS(apiKey, baseURL string, timeout time.Duration, cache ports.DistanceCache) (*ORS, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &domain.ConfigurationError{Key: "ORS_API_KEY", Msg: "ORS api key is empty"}
	}
	if baseURL == "" {
		baseURL = defaultORSBaseURL
	}

	c := httpclient.New("ors", timeout)
	c.Header.Set("Authorization", apiKey)

	return &ORS{
		client:  c,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving-car",
		cache:   cache,
	}, nil
}

func (o *ORS) Name() string { return "ors" }

func (o *ORS) Matrix(ctx context.Context, points []domain.Stop) (_ domain.DistanceMatrix, err error) {
	defer obs.Time(ctx, "ors.Matrix")(&err)

	n := len(points)
	out := domain.NewDistanceMatrix(n, o.Name())
	if n < 2 {
		return out, nil
	}

	keys := make([]string, n)
	for i, p := range points {
		keys[i] = p.Coordinates().Key()
	}

	// Check persistent distance cache before issuing external API calls.
	missing := make([]int, 0, n)
	for i := range points {
		row, ok := o.cachedRow(ctx, keys, i)
		if !ok {
			missing = append(missing, i)
			continue
		}
		for j, r := range row {
			out.Distances[i][j] = r.DistanceMeters
			out.Durations[i][j] = r.DurationSeconds
		}
	}

	if len(missing) > 0 {
		fetched, err := o.fetchRows(ctx, points, missing)
		if err != nil {
			return domain.DistanceMatrix{}, fmt.Errorf("fetching matrix rows: %w", err)
		}

		for k, i := range missing {
			row := make(map[string]ports.DistanceResult, n)
			for j := 0; j < n; j++ {
				r := fetched[k][j]
				out.Distances[i][j] = r.DistanceMeters
				out.Durations[i][j] = r.DurationSeconds
				if keys[j] != keys[i] {
					row[keys[j]] = r
				}
			}
			if o.cache != nil {
				if err := o.cache.PutMany(ctx, keys[i], row); err != nil {
					zerolog.Ctx(ctx).Warn().Err(err).Msg("distance cache write failed")
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		copy(out.StaticDurations[i], out.Durations[i])
	}

	return out, nil
}

// cachedRow returns row i when every off-diagonal entry is cached.
func (o *ORS) cachedRow(ctx context.Context, keys []string, i int) ([]ports.DistanceResult, bool) {
	if o.cache == nil {
		return nil, false
	}

	dests := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != keys[i] {
			dests = append(dests, k)
		}
	}

	hits, err := o.cache.GetMany(ctx, keys[i], dests)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("distance cache read failed")
		return nil, false
	}

	row := make([]ports.DistanceResult, len(keys))
	for j, k := range keys {
		if k == keys[i] {
			continue
		}
		r, ok := hits[k]
		if !ok {
			return nil, false
		}
		row[j] = r
	}
	return row, true
}

// fetchRows retrieves distance and duration from each source index to every
// point in one call to the OpenRouteService matrix endpoint.
func (o *ORS) fetchRows(
	ctx context.Context,
	points []domain.Stop,
	sources []int,
) ([][]ports.DistanceResult, error) {
	if len(sources) == 0 {
		return nil, errors.New("no source rows requested")
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(points))
	destIdx := make([]int, 0, len(points))
	for i, p := range points {
		locations = append(locations, p.Coordinates().CoordsToList())
		destIdx = append(destIdx, i)
	}

	req := matrixRequest{
		Locations:    locations,
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
		Sources:      sources,
	}

	var mr matrixResponse
	if err := o.client.SendJSON(ctx, http.MethodPost, endpoint, req, &mr); err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}

	if len(mr.Distances) != len(sources) || len(mr.Durations) != len(sources) {
		return nil, &domain.ParseError{Source: o.Name(), Err: fmt.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(sources), len(mr.Distances), len(mr.Durations),
		)}
	}

	out := make([][]ports.DistanceResult, len(sources))
	for k, src := range sources {
		rowDistances := mr.Distances[k]
		rowDurations := mr.Durations[k]

		if len(rowDistances) != len(points) || len(rowDurations) != len(points) {
			return nil, &domain.ParseError{Source: o.Name(), Err: fmt.Errorf(
				"row %d lengths do not match points: distances=%d durations=%d points=%d",
				src, len(rowDistances), len(rowDurations), len(points),
			)}
		}

		out[k] = make([]ports.DistanceResult, len(points))
		for j := range points {
			metersPtr := rowDistances[j]
			secondsPtr := rowDurations[j]

			// null marks an unroutable pair
			if metersPtr == nil || secondsPtr == nil {
				return nil, &domain.ProviderError{
					Provider: o.Name(),
					Err:      fmt.Errorf("no route from %q to %q", points[src].Label, points[j].Label),
				}
			}

			// ORS returns float metrics; round to nearest integer for domain consistency.
			out[k][j] = ports.DistanceResult{
				DistanceMeters:  int(math.Round(*metersPtr)),
				DurationSeconds: int(math.Round(*secondsPtr)),
			}
		}
	}

	return out, nil
}
