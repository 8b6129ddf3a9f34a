// This file implements parsing and validation of query parameters shared by
// the chart endpoints.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"studiocharts/internal/core"
)

// ErrInvalidParam wraps every query parameter validation failure.
var ErrInvalidParam = errors.New("invalid parameter")

const maxStudioLength = 200

// ParseTopN reads the "n" parameter. Missing means def; values are accepted
// in [1, max].
func ParseTopN(query url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get("n"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: n must be a number", ErrInvalidParam)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("%w: n must be between 1 and %d", ErrInvalidParam, max)
	}
	return n, nil
}

// ParseStudio reads the "studio" filter. Missing or blank selects every
// studio. The value is not checked against the dataset here.
func ParseStudio(query url.Values) (string, error) {
	s := sanitizeInput(query.Get("studio"))
	if s == "" {
		return core.AllStudios, nil
	}
	if len(s) > maxStudioLength {
		return "", fmt.Errorf("%w: studio name too long", ErrInvalidParam)
	}
	return s, nil
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
