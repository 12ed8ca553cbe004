package address

import (
	"addris-route-service/internal/domain"
	"strings"
)

var queryOrder = []string{FieldHouseNumber, FieldRoad, FieldUnit, FieldPoBox, FieldCity, FieldState, FieldPostcode, FieldCountry}

// QueryVariants returns geocoder queries ordered by priority: the full
// address, the ZIP5 form of a ZIP+4, the address without postcode, then the
// raw text. Duplicates are removed.
func QueryVariants(p domain.ParsedAddress, rawText string) []string {
	fields := Fields(p)
	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	add(buildQuery(fields))

	if pc := fields[FieldPostcode]; pc != "" {
		if base := baseZip(pc); base != "" && base != pc {
			alt := copyFields(fields)
			alt[FieldPostcode] = base
			add(buildQuery(alt))
		}
		zipless := copyFields(fields)
		delete(zipless, FieldPostcode)
		add(buildQuery(zipless))
	}

	add(collapse(rawText))
	return out
}

// CanonicalKey is a case-insensitive identity for a structured address.
func CanonicalKey(p domain.ParsedAddress) string {
	fields := Fields(p)
	if pc := fields[FieldPostcode]; pc != "" {
		if base := baseZip(pc); base != "" {
			fields[FieldPostcode] = base
		}
	}
	delete(fields, FieldCountry)
	return strings.ToLower(buildQuery(fields))
}

// FormatLabel renders components as a single display line.
func FormatLabel(p domain.ParsedAddress) string {
	return buildQuery(Fields(p))
}

func buildQuery(fields map[string]string) string {
	parts := make([]string, 0, len(queryOrder))
	seen := make(map[string]struct{}, len(queryOrder))
	for _, key := range queryOrder {
		v := collapse(fields[key])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}

func baseZip(pc string) string {
	if m := reZip.FindStringSubmatch(strings.ReplaceAll(pc, " ", "")); m != nil {
		return m[1]
	}
	return ""
}

func copyFields(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
