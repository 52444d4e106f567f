package probe

import (
	"errors"
	"fmt"
)

// TooShortError reports a payload shorter than its fixed binary layout
// requires. The decode is rejected wholesale - no partial result is
// ever produced.
type TooShortError struct {
	Frame string // "manufacturer payload", "acknowledgment frame"
	Len   int
	Min   int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("%s too short: %d bytes, need %d", e.Frame, e.Len, e.Min)
}

// IsTooShort reports whether err is (or wraps) a TooShortError.
func IsTooShort(err error) bool {
	var te *TooShortError
	return errors.As(err, &te)
}
