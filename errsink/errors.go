package errsink

import (
	"errors"
	"fmt"
	"strings"
)

// AggregateError combines multiple errors
type AggregateError struct {
	Errors  []error
	Dropped uint64 // errors counted past the retention cap
}

func (a *AggregateError) Error() string {
	if len(a.Errors) == 0 {
		return "no errors"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s) occurred:", len(a.Errors)+int(a.Dropped))
	for i, err := range a.Errors {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	if a.Dropped > 0 {
		fmt.Fprintf(&b, "\n  ... %d more", a.Dropped)
	}
	return b.String()
}

// Unwrap makes AggregateError compatible with errors.Is/errors.As
func (a *AggregateError) Unwrap() []error {
	return a.Errors
}

// Is implements error matching for wrapped errors
func (a *AggregateError) Is(target error) bool {
	for _, err := range a.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
