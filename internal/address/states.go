package address

import "strings"

var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "district of columbia": "DC",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID", "illinois": "IL",
	"indiana": "IN", "iowa": "IA", "kansas": "KS", "kentucky": "KY", "louisiana": "LA",
	"maine": "ME", "maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK", "oregon": "OR",
	"pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT", "virginia": "VA",
	"washington": "WA", "west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
	"puerto rico": "PR", "guam": "GU",
}

var stateCodes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(stateNames))
	for _, code := range stateNames {
		m[code] = struct{}{}
	}
	return m
}()

// stateCode returns the USPS code for a state code or full name.
func stateCode(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), ".,")
	if s == "" {
		return "", false
	}
	up := strings.ToUpper(s)
	if _, ok := stateCodes[up]; ok {
		return up, true
	}
	if code, ok := stateNames[strings.ToLower(collapse(s))]; ok {
		return code, true
	}
	return "", false
}
