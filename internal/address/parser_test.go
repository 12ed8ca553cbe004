package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "comma separated",
			text: "123 Main Street, Springfield, IL 62704",
			want: map[string]string{"house_number": "123", "road": "Main Street", "city": "Springfield", "state": "IL", "postcode": "62704"},
		},
		{
			name: "abbreviated suffix",
			text: "1 Science Pk, Boston, MA 02114",
			want: map[string]string{"house_number": "1", "road": "Science Pk", "city": "Boston", "state": "MA", "postcode": "02114"},
		},
		{
			name: "shipping label noise",
			text: "PRIORITY MAIL TM MARKY'S STORE 0005 509 CASTLE RIDGE RD AUSTIN TX 78746-5147",
			want: map[string]string{"house_number": "509", "road": "CASTLE RIDGE RD", "city": "AUSTIN", "state": "TX", "postcode": "78746-5147"},
		},
		{
			name: "unit designator",
			text: "55 Fruit St Apt 4B, Boston, MA 02114",
			want: map[string]string{"house_number": "55", "road": "Fruit St", "unit": "Apt 4B", "city": "Boston", "state": "MA", "postcode": "02114"},
		},
		{
			name: "po box",
			text: "PO Box 123, Boston, MA 02110",
			want: map[string]string{"po_box": "PO Box 123", "city": "Boston", "state": "MA", "postcode": "02110"},
		},
		{
			name: "no postcode",
			text: "12 Elm St Boston MA",
			want: map[string]string{"house_number": "12", "road": "Elm St", "city": "Boston", "state": "MA"},
		},
		{
			name: "full state name",
			text: "77 Massachusetts Ave, Cambridge, Massachusetts 02139",
			want: map[string]string{"house_number": "77", "road": "Massachusetts Ave", "city": "Cambridge", "state": "MA", "postcode": "02139"},
		},
		{
			name: "country suffix",
			text: "350 5th Ave, New York, NY 10118, USA",
			want: map[string]string{"house_number": "350", "road": "5th Ave", "city": "New York", "state": "NY", "postcode": "10118", "country": "US"},
		},
		{
			name: "not an address",
			text: "thank you for your business",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields(Parse(tt.text))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeOCRText(t *testing.T) {
	in := "509 CASTLE\t\tRIDGE RD\r\n\r\n\r\n\r\nAUSTIN  TX\n-----\n"
	assert.Equal(t, "509 CASTLE RIDGE RD\n\nAUSTIN TX", NormalizeOCRText(in))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "12 Elm St, Boston", Clean("  12 Elm St,\n Boston*  "))
	assert.Equal(t, "Unit 1", Clean("Ｕｎｉｔ １"))
}
