package llm

import (
	"encoding/json"
	"strings"
)

const (
	textSystemPrompt = "You are an expert address extraction system. Identify and extract all physical addresses from the text."
	imagePrompt      = "Identify and extract all physical addresses visible in this image."
	// OCR text beyond this is not worth the tokens.
	maxPromptText = 4000
)

// formatInstruction asks for JSON matching AddressSchema.
func formatInstruction() string {
	b, _ := json.MarshalIndent(AddressSchema(), "", "  ")
	return strings.Join([]string{
		`Return ONLY JSON of the form {"addresses": [...]} that matches the JSON Schema below.`,
		"Use one entry per distinct address. Put the exact source substring in raw_text.",
		"If a field is not present, omit it. Never output null.",
		"If you can judge it, set confidence between 0 and 1.",
		"JSON Schema:",
		string(b),
	}, "\n")
}

func truncateText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxPromptText {
		return s
	}
	return s[:maxPromptText]
}
