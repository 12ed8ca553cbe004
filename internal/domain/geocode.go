package domain

// Match-quality tier reported by a geocoder.
type MatchTier string

const (
	TierExact       MatchTier = "exact"
	TierApproximate MatchTier = "approximate"
	TierNone        MatchTier = "none"
)

// MinMatchScore is the lowest score a found match can carry.
const MinMatchScore = 0.2

type MatchQuality struct {
	Tier  MatchTier
	Score float64
}

// GeocodeResult is a resolved location with a canonical label.
type GeocodeResult struct {
	Latitude  float64
	Longitude float64
	Label     string
	Quality   MatchQuality
	Provider  string
}

// Found reports whether the result carries a usable match.
func (g GeocodeResult) Found() bool {
	return g.Quality.Tier != "" && g.Quality.Tier != TierNone
}

// ClampScore confines a provider confidence to the band of its tier:
// exact [0.7, 1], approximate [0.2, 0.69], none 0.
func ClampScore(tier MatchTier, score float64) float64 {
	lo, hi := 0.0, 0.0
	switch tier {
	case TierExact:
		lo, hi = 0.7, 1.0
	case TierApproximate:
		lo, hi = MinMatchScore, 0.69
	default:
		return 0
	}
	if score < lo {
		return lo
	}
	if score > hi {
		return hi
	}
	return score
}
