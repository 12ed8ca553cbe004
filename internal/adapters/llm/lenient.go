package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// lenientAddresses salvages output that failed schema validation. Numbers in
// string fields are kept as text, anything else unusable is dropped and
// reported by name. Output cut off mid-array keeps its complete entries.
func lenientAddresses(content []byte) ([]addressItem, []string, error) {
	var (
		list    []any
		dropped []string
	)

	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		list = completeEntries(content)
		if len(list) == 0 {
			return nil, nil, err
		}
		dropped = append(dropped, "addresses[] (truncated)")
	} else {
		switch t := doc.(type) {
		case []any:
			list = t
		case map[string]any:
			l, ok := t["addresses"].([]any)
			if !ok {
				return nil, nil, errors.New("no addresses array")
			}
			list = l
		default:
			return nil, nil, errors.New("unexpected top-level value")
		}
	}

	items := make([]addressItem, 0, len(list))

	for _, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			dropped = append(dropped, "addresses[]")
			continue
		}

		fields := make(map[string]string, len(addressFields))
		for _, f := range addressFields {
			v, ok := m[f]
			if !ok || v == nil {
				continue
			}
			switch t := v.(type) {
			case string:
				fields[f] = strings.TrimSpace(t)
			case float64:
				fields[f] = strconv.FormatFloat(t, 'f', -1, 64)
			default:
				dropped = append(dropped, f)
			}
		}

		item := addressItem{
			HouseNumber: fields["house_number"],
			Road:        fields["road"],
			Unit:        fields["unit"],
			City:        fields["city"],
			State:       fields["state"],
			Postcode:    fields["postcode"],
			Country:     fields["country"],
			RawText:     fields["raw_text"],
		}

		switch c := m["confidence"].(type) {
		case float64:
			item.Confidence = &c
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
				item.Confidence = &f
			} else {
				dropped = append(dropped, "confidence")
			}
		}

		items = append(items, item)
	}

	return items, dropped, nil
}

// completeEntries streams the addresses array of malformed output and
// returns every element decoded before the first error.
func completeEntries(content []byte) []any {
	dec := json.NewDecoder(bytes.NewReader(content))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if tok == json.Delim('{') {
		for {
			key, err := dec.Token()
			if err != nil {
				return nil
			}
			if key == "addresses" {
				break
			}
			if _, ok := key.(string); !ok {
				return nil
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
		}
		if tok, err = dec.Token(); err != nil {
			return nil
		}
	}
	if tok != json.Delim('[') {
		return nil
	}

	var list []any
	for dec.More() {
		var el any
		if err := dec.Decode(&el); err != nil {
			break
		}
		list = append(list, el)
	}
	return list
}
