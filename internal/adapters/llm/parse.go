package llm

import (
	"addris-route-service/internal/address"
	"addris-route-service/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type addressItem struct {
	HouseNumber string   `json:"house_number"`
	Road        string   `json:"road"`
	Unit        string   `json:"unit"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Postcode    string   `json:"postcode"`
	Country     string   `json:"country"`
	RawText     string   `json:"raw_text"`
	Confidence  *float64 `json:"confidence"`
}

type addressDocument struct {
	Addresses []addressItem `json:"addresses"`
}

// decodeAddresses turns model output into raw candidates. Output that fails
// the schema goes through the lenient path before it is given up on.
// Confidence is 0 when the model did not report one.
func decodeAddresses(ctx context.Context, source, content string) ([]domain.RawCandidate, error) {
	body := []byte(stripCodeFence(content))
	if len(body) == 0 {
		return nil, nil
	}

	var items []addressItem
	if err := validateAddresses(body); err != nil {
		lenient, dropped, lerr := lenientAddresses(body)
		if lerr != nil {
			return nil, &domain.ParseError{Source: source, Err: fmt.Errorf("%w (lenient: %v)", err, lerr)}
		}
		zerolog.Ctx(ctx).Warn().
			Str("provider", source).
			Strs("dropped", dropped).
			Err(err).
			Msg("llm output failed schema, lenient parse applied")
		items = lenient
	} else {
		var doc addressDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, &domain.ParseError{Source: source, Err: err}
		}
		items = doc.Addresses
	}

	out := make([]domain.RawCandidate, 0, len(items))
	for _, it := range items {
		parsed := domain.ParsedAddress{
			HouseNumber: strings.TrimSpace(it.HouseNumber),
			Road:        strings.TrimSpace(it.Road),
			Unit:        strings.TrimSpace(it.Unit),
			City:        strings.TrimSpace(it.City),
			State:       strings.TrimSpace(it.State),
			Postcode:    strings.TrimSpace(it.Postcode),
			Country:     strings.TrimSpace(it.Country),
		}
		raw := strings.TrimSpace(it.RawText)
		if parsed.IsEmpty() && raw == "" {
			continue
		}
		if raw == "" {
			raw = address.FormatLabel(parsed)
		}

		var conf float64
		if it.Confidence != nil {
			conf = max(0, min(1, *it.Confidence))
		}

		p := parsed
		out = append(out, domain.RawCandidate{
			RawText:    raw,
			Parsed:     &p,
			Confidence: conf,
			Source:     source,
		})
	}
	return out, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite
// being asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
