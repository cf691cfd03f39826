package visiting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"5:00 PM - 9:00 PM", nil},
		{"9:30 AM - 12:15 PM", nil},
		{"12:00 AM - 1:00 AM", nil},
		{"5:00 PM-9:00 PM", ErrMissingSeparator},
		{"", ErrMissingSeparator},
		{"5:00 pm - 9:00 PM", ErrInvalidClock},
		{"5 PM - 9:00 PM", ErrInvalidClock},
		{"5:00 PM - 9:00", ErrInvalidClock},
		{"9:00 PM - 5:00 PM", ErrEmptyRange},
		{"5:00 PM - 5:00 PM", ErrEmptyRange},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tc.in), tc.want)
		})
	}
}
