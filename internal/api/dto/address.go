package dto

import "addris-route-service/internal/domain"

type ParsedAddressResponse struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Unit          string `json:"unit,omitempty"`
	PoBox         string `json:"po_box,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country,omitempty"`
	ResolvedLabel string `json:"resolved_label"`
}

type AddressResponse struct {
	RawText        string                `json:"raw_text"`
	Parsed         ParsedAddressResponse `json:"parsed"`
	Latitude       *float64              `json:"latitude"`
	Longitude      *float64              `json:"longitude"`
	Confidence     float64               `json:"confidence"`
	Status         string                `json:"status"`
	GeocodeMessage string                `json:"geocode_message,omitempty"`
}

type ExtractResponse struct {
	Addresses []AddressResponse `json:"addresses"`
}

func NewExtractResponse(cands []domain.AddressCandidate) ExtractResponse {
	res := ExtractResponse{Addresses: make([]AddressResponse, 0, len(cands))}
	for _, c := range cands {
		p := c.Parsed
		res.Addresses = append(res.Addresses, AddressResponse{
			RawText: c.RawText,
			Parsed: ParsedAddressResponse{
				HouseNumber:   p.HouseNumber,
				Road:          p.Road,
				Unit:          p.Unit,
				PoBox:         p.PoBox,
				City:          p.City,
				State:         p.State,
				Postcode:      p.Postcode,
				Country:       p.Country,
				ResolvedLabel: p.ResolvedLabel,
			},
			Latitude:       c.Latitude,
			Longitude:      c.Longitude,
			Confidence:     c.Confidence,
			Status:         string(c.Status),
			GeocodeMessage: c.Message,
		})
	}
	return res
}
