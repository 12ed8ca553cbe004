package address

import (
	"addris-route-service/internal/domain"
	"regexp"
	"strings"
	"unicode"
)

const (
	streetSuffixes = `street|st|avenue|ave|av|road|rd|boulevard|blvd|drive|dr|lane|ln|court|ct|` +
		`place|pl|terrace|ter|way|parkway|pkwy|pk|highway|hwy|circle|cir|square|sq|trail|trl|` +
		`loop|plaza|plz|expressway|expy|pike|row|alley|aly|crescent|cres`
	nameWord = `(?:[a-z][a-z'.\-]*|\d+(?:st|nd|rd|th))`
)

var (
	reStreet = regexp.MustCompile(`(?i)\b(\d+[a-z]?)\s+(` +
		`(?:(?:ne|nw|se|sw|n|s|e|w)\.?\s+)?` +
		nameWord + `(?:\s+` + nameWord + `){0,3}?\s+(?:` + streetSuffixes + `)\b\.?` +
		`(?:\s+(?:ne|nw|se|sw|n|s|e|w)\b)?)`)
	reBareStreet = regexp.MustCompile(`(?i)^(\d+[a-z]?)\s+([a-z][a-z'.\-]*(?:\s+[a-z][a-z'.\-]*){0,3})$`)
	reUnit       = regexp.MustCompile(`(?i)^[\s,]*((?:(?:apt|apartment|suite|ste|unit|rm|room|fl|floor|bldg|building)\.?\s*#?\s*|#\s*)[a-z0-9\-]+)\b`)
	rePoBox      = regexp.MustCompile(`(?i)\bp\.?\s*o\.?\s*box\s+(\d+)\b`)
	rePostcode   = regexp.MustCompile(`\b(\d{5})(?:\s?-\s?(\d{4}))?\b`)
	reCountry    = regexp.MustCompile(`(?i)[\s,]*\b(usa|u\.s\.a\.?|united states(?: of america)?|us)\.?$`)
	reWord       = regexp.MustCompile(`\S+`)
)

// Parse extracts US-style address components from free text.
// Components that cannot be located are left empty.
func Parse(text string) domain.ParsedAddress {
	var p domain.ParsedAddress

	s := Clean(text)
	if s == "" {
		return p
	}

	if loc := reCountry.FindStringSubmatchIndex(s); loc != nil && loc[0] > 0 {
		p.Country = "US"
		s = strings.TrimRight(s[:loc[0]], " ,")
	}

	streets := reStreet.FindAllStringSubmatchIndex(s, -1)
	houseStarts := make(map[int]struct{}, len(streets))
	for _, m := range streets {
		houseStarts[m[2]] = struct{}{}
	}

	pcStart := -1
	for _, m := range rePostcode.FindAllStringSubmatchIndex(s, -1) {
		if _, ok := houseStarts[m[0]]; ok {
			continue
		}
		pcStart = m[0]
		p.Postcode = s[m[2]:m[3]]
		if m[4] >= 0 {
			p.Postcode += "-" + s[m[4]:m[5]]
		}
	}

	anchor := len(s)
	if pcStart >= 0 {
		anchor = pcStart
		if code, start, ok := trailingState(s[:pcStart], false); ok {
			p.State = code
			anchor = start
		}
	}

	cityFrom := -1
	if m := pickStreet(streets, anchor); m != nil {
		p.HouseNumber = s[m[2]:m[3]]
		p.Road = collapse(s[m[4]:m[5]])
		cityFrom = m[1]
	} else if house, road, end, ok := bareStreet(s[:anchor]); ok {
		p.HouseNumber, p.Road = house, road
		cityFrom = end
	}

	if loc := rePoBox.FindStringSubmatchIndex(s[:anchor]); loc != nil {
		p.PoBox = "PO Box " + s[loc[2]:loc[3]]
		if loc[1] > cityFrom {
			cityFrom = loc[1]
		}
	}

	if cityFrom >= 0 {
		if loc := reUnit.FindStringSubmatchIndex(s[cityFrom:anchor]); loc != nil {
			p.Unit = collapse(s[cityFrom+loc[2] : cityFrom+loc[3]])
			cityFrom += loc[1]
		}
	}

	if p.State == "" && pcStart < 0 {
		from := cityFrom
		if from < 0 {
			from = 0
		}
		if code, start, ok := trailingState(s[from:], true); ok {
			p.State = code
			anchor = from + start
		}
	}

	region := ""
	switch {
	case cityFrom >= 0 && cityFrom <= anchor:
		region = s[cityFrom:anchor]
	case cityFrom < 0 && (p.State != "" || p.Postcode != ""):
		region = s[:anchor]
	}
	p.City = cityFromRegion(region)

	return p
}

// pickStreet prefers the last street match ending before the anchor,
// falling back to the first match anywhere.
func pickStreet(matches [][]int, anchor int) []int {
	var best []int
	for _, m := range matches {
		if m[1] <= anchor {
			best = m
		}
	}
	if best == nil && len(matches) > 0 {
		best = matches[0]
	}
	return best
}

// bareStreet recognises "123 Main" segments in comma separated text.
func bareStreet(s string) (house, road string, end int, ok bool) {
	offset := 0
	for _, seg := range strings.Split(s, ",") {
		segEnd := offset + len(seg)
		if m := reBareStreet.FindStringSubmatch(strings.TrimSpace(seg)); m != nil {
			return m[1], collapse(m[2]), segEnd, true
		}
		offset = segEnd + 1
	}
	return "", "", 0, false
}

// trailingState looks for a state code or name in the last words of s.
// With strict set, two-letter codes must be written in upper case.
func trailingState(s string, strict bool) (code string, start int, ok bool) {
	words := reWord.FindAllStringIndex(s, -1)
	for i := len(words) - 1; i >= 0; i-- {
		for n := 3; n >= 1; n-- {
			if i-n+1 < 0 {
				continue
			}
			from, to := words[i-n+1][0], words[i][1]
			phrase := strings.Trim(s[from:to], " ,.")
			if n > 1 && strings.Contains(phrase, ",") {
				continue
			}
			c, found := stateCode(phrase)
			if !found {
				continue
			}
			if n == 1 && len(phrase) == 2 && strict && strings.ToUpper(phrase) != phrase {
				continue
			}
			return c, from, true
		}
		if !strict {
			break
		}
	}
	return "", 0, false
}

// cityFromRegion takes the last comma segment of region and keeps its
// trailing run of up to three alphabetic words.
func cityFromRegion(region string) string {
	segs := strings.Split(region, ",")
	seg := ""
	for i := len(segs) - 1; i >= 0; i-- {
		if strings.TrimSpace(segs[i]) != "" {
			seg = segs[i]
			break
		}
	}

	words := strings.Fields(seg)
	kept := make([]string, 0, 3)
	for i := len(words) - 1; i >= 0 && len(kept) < 3; i-- {
		w := strings.Trim(words[i], ".")
		if w == "" || !isAlphaWord(w) || reNoise.MatchString(w) {
			break
		}
		kept = append([]string{w}, kept...)
	}
	return strings.Join(kept, " ")
}

func isAlphaWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}
