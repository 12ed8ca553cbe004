package domain

// Status of an extracted address after fusion.
type CandidateStatus string

const (
	StatusValidated CandidateStatus = "validated"
	StatusAmbiguous CandidateStatus = "ambiguous"
	StatusFailed    CandidateStatus = "failed"
)

// Structured address fields produced by the parser or an LLM.
// Empty strings mean "not present".
type ParsedAddress struct {
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

// IsEmpty reports whether no component was recognised.
func (p ParsedAddress) IsEmpty() bool {
	return p.HouseNumber == "" && p.Road == "" && p.Unit == "" && p.PoBox == "" &&
		p.City == "" && p.State == "" && p.Postcode == "" && p.Country == ""
}

// Pre-fusion output of an extraction strategy.
// Parsed is nil when the strategy only produced text.
type RawCandidate struct {
	RawText    string
	Parsed     *ParsedAddress
	Confidence float64
	Source     string
}

// One address extracted from a document, with confidence and status.
// A validated candidate always carries both coordinates.
type AddressCandidate struct {
	RawText    string
	Parsed     ParsedAddress
	Latitude   *float64
	Longitude  *float64
	Confidence float64
	Status     CandidateStatus
	Message    string
}

// A text fragment recognised by an OCR engine.
type TextSpan struct {
	Text       string
	Confidence float64
}
