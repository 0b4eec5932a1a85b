package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips markup from user-supplied text (names, feedback) before it
// is stored or rendered onto a certificate.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
