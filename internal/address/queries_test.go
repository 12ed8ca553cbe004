package address

import (
	"addris-route-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryVariantsGeneratesZipFallbacks(t *testing.T) {
	parsed := domain.ParsedAddress{
		HouseNumber: "609",
		Road:        "Castle Ridge Rd",
		City:        "Austin",
		State:       "TX",
		Postcode:    "78746-5147",
	}

	got := QueryVariants(parsed, "609 Castle Ridge Rd Austin TX 78746-5147")

	assert.Equal(t, []string{
		"609, Castle Ridge Rd, Austin, TX, 78746-5147",
		"609, Castle Ridge Rd, Austin, TX, 78746",
		"609, Castle Ridge Rd, Austin, TX",
		"609 Castle Ridge Rd Austin TX 78746-5147",
	}, got)
}

func TestQueryVariantsHandlesMissingComponents(t *testing.T) {
	got := QueryVariants(domain.ParsedAddress{City: "Austin", State: "TX"}, "Austin TX")
	assert.Equal(t, []string{"Austin, TX", "Austin TX"}, got)
}

func TestCanonicalKeyIgnoresCaseAndZipExtension(t *testing.T) {
	a := Parse("1 Science Pk, Boston, MA 02114")
	b := Parse("1 SCIENCE PK BOSTON MA 02114-1234")
	assert.Equal(t, CanonicalKey(a), CanonicalKey(b))
	assert.Equal(t, "1, science pk, boston, ma, 02114", CanonicalKey(a))
}
