package address

import (
	"addris-route-service/internal/domain"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	FieldHouseNumber = "house_number"
	FieldRoad        = "road"
	FieldUnit        = "unit"
	FieldPoBox       = "po_box"
	FieldCity        = "city"
	FieldState       = "state"
	FieldPostcode    = "postcode"
	FieldCountry     = "country"
)

var (
	reNoise = regexp.MustCompile(`(?i)\b(tracking|shipment|shipping|package|parcel|barcode|deliver(?:y|ies)|` +
		`pickup|drop\s?off|mail|label|order|confirmation|invoice|reference|usps|fedex|ups|dhl)\b`)
	rePhone = regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\d{3})[-.\s]?\d{3}[-.\s]?\d{4}`)
	reZip   = regexp.MustCompile(`^(\d{5})(?:-(\d{4}))?$`)
)

// Completeness scores how much of an address structure is present.
// Score is the weighted fraction of present fields, forced to zero unless
// at least one required combination is satisfied. A PO box stands in for
// the road when no road is present.
type Completeness struct {
	Weights  map[string]float64
	Required [][]string
}

// DefaultCompleteness returns the weights used for US addresses.
func DefaultCompleteness() Completeness {
	return Completeness{
		Weights: map[string]float64{
			FieldHouseNumber: 0.20,
			FieldRoad:        0.30,
			FieldCity:        0.20,
			FieldState:       0.10,
			FieldPostcode:    0.20,
		},
		Required: [][]string{
			{FieldHouseNumber, FieldRoad},
			{FieldRoad, FieldCity},
			{FieldRoad, FieldState},
			{FieldRoad, FieldPostcode},
			{FieldHouseNumber, FieldCity},
			{FieldHouseNumber, FieldPostcode},
			{FieldPoBox, FieldCity},
			{FieldPostcode, FieldCity},
		},
	}
}

// Satisfied reports whether any required combination is fully present.
func (c Completeness) Satisfied(present map[string]string) bool {
	for _, combo := range c.Required {
		ok := true
		for _, f := range combo {
			if present[f] == "" {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c Completeness) Score(present map[string]string) float64 {
	if !c.Satisfied(present) {
		return 0
	}
	var total, got float64
	for field, w := range c.Weights {
		total += w
		v := present[field]
		if field == FieldRoad && v == "" {
			v = present[FieldPoBox]
		}
		if v != "" {
			got += w
		}
	}
	if total == 0 {
		return 0
	}
	return got / total
}

// Result of normalizing one piece of text.
type Result struct {
	Address domain.ParsedAddress
	Score   float64
	Valid   bool
	Reason  string
}

// Normalizer parses, cleans and validates address text.
type Normalizer struct {
	Completeness Completeness
	MinScore     float64
}

func NewNormalizer(c Completeness, minScore float64) *Normalizer {
	return &Normalizer{Completeness: c, MinScore: minScore}
}

// Normalize parses free text and validates the result.
func (n *Normalizer) Normalize(text string) Result {
	return n.Validate(Parse(text), text)
}

// Validate cleans already-structured components and scores them against rawText.
func (n *Normalizer) Validate(parsed domain.ParsedAddress, rawText string) Result {
	fields := Fields(parsed)
	cleaned := make(map[string]string, len(fields))
	for key, value := range fields {
		v := collapse(value)
		if v == "" || reNoise.MatchString(v) {
			continue
		}
		switch key {
		case FieldHouseNumber:
			if !strings.ContainsFunc(v, unicode.IsDigit) || partOfPhoneNumber(v, rawText) {
				continue
			}
		case FieldRoad:
			if !strings.ContainsFunc(v, unicode.IsLetter) {
				continue
			}
		case FieldPostcode:
			if v = NormalizePostcode(v); v == "" {
				continue
			}
		case FieldState:
			if code, ok := stateCode(v); ok {
				v = code
			}
		}
		cleaned[key] = v
	}

	res := Result{Address: fromFields(cleaned)}
	res.Address.ResolvedLabel = parsed.ResolvedLabel

	suffix := ""
	if reNoise.MatchString(rawText) {
		suffix = " (looks like a shipping label)"
	}

	switch {
	case len(fields) == 0:
		res.Reason = "No address components"
	case len(cleaned) < 2:
		res.Reason = "Insufficient address detail" + suffix
	case !n.Completeness.Satisfied(cleaned):
		res.Reason = "Missing essential address parts" + suffix
	default:
		res.Score = n.Completeness.Score(cleaned)
		if res.Score < n.MinScore {
			res.Reason = fmt.Sprintf("Insufficient address detail (completeness %.2f)", res.Score)
			return res
		}
		res.Valid = true
	}
	return res
}

// NormalizePostcode returns ZIP5, ZIP+4 as "12345-6789", or an alphanumeric
// code of at least three characters. Anything else yields "".
func NormalizePostcode(s string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if compact == "" {
		return ""
	}
	if m := reZip.FindStringSubmatch(compact); m != nil {
		if m[2] != "" {
			return m[1] + "-" + m[2]
		}
		return m[1]
	}
	if len(compact) >= 3 && !strings.ContainsFunc(compact, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		return strings.ToUpper(compact)
	}
	return ""
}

// partOfPhoneNumber reports whether the house number only occurs inside
// phone numbers of the raw text.
func partOfPhoneNumber(house, rawText string) bool {
	if !rePhone.MatchString(rawText) {
		return false
	}
	rest := rePhone.ReplaceAllString(rawText, " ")
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(house) + `\b`)
	return !re.MatchString(rest)
}

// Fields returns the non-empty components keyed by field name.
func Fields(p domain.ParsedAddress) map[string]string {
	out := make(map[string]string, 8)
	set := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	set(FieldHouseNumber, p.HouseNumber)
	set(FieldRoad, p.Road)
	set(FieldUnit, p.Unit)
	set(FieldPoBox, p.PoBox)
	set(FieldCity, p.City)
	set(FieldState, p.State)
	set(FieldPostcode, p.Postcode)
	set(FieldCountry, p.Country)
	return out
}

func fromFields(m map[string]string) domain.ParsedAddress {
	return domain.ParsedAddress{
		HouseNumber: m[FieldHouseNumber],
		Road:        m[FieldRoad],
		Unit:        m[FieldUnit],
		PoBox:       m[FieldPoBox],
		City:        m[FieldCity],
		State:       m[FieldState],
		Postcode:    m[FieldPostcode],
		Country:     m[FieldCountry],
	}
}
