// Package visiting validates doctor visiting-hours strings such as "5:00 PM - 9:00 PM".
// The reminder job reads the start of this range, so the grammar must match it exactly.
package visiting

import (
	"errors"
	"strings"
	"time"
)

const (
	separator   = " - "
	clockLayout = "3:04 PM"
)

var (
	ErrMissingSeparator = errors.New(`visiting hours must look like "h:mm AM - h:mm PM"`)
	ErrInvalidClock     = errors.New("visiting hours contain an invalid time")
	ErrEmptyRange       = errors.New("visiting hours must end after they start")
)

func Validate(hours string) error {
	start, end, ok := strings.Cut(hours, separator)
	if !ok {
		return ErrMissingSeparator
	}
	from, err := time.Parse(clockLayout, start)
	if err != nil {
		return ErrInvalidClock
	}
	to, err := time.Parse(clockLayout, end)
	if err != nil {
		return ErrInvalidClock
	}
	if !to.After(from) {
		return ErrEmptyRange
	}
	return nil
}
