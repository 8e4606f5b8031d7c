// Package normalize implements the canonical text form used everywhere a
// string field is compared, stored, or repaired.
//
// The rules, applied in this order: trim leading/trailing whitespace,
// collapse every whitespace run to a single ASCII space, title-case each
// word. Canonical is a fixed point: Canonical(Canonical(s)) == Canonical(s).
// Ingestion and at-rest drift detection must both go through this package so
// the two can never disagree about what canonical means.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Result is the outcome of normalizing one value.
type Result struct {
	// Canonical is the normalized form.
	Canonical string

	// Changed reports whether the input differed from Canonical.
	Changed bool
}

// Canonical returns the canonical form of s.
func Canonical(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		return ""
	}
	// cases.Caser is stateful; build one per call rather than sharing.
	return cases.Title(language.Und).String(collapsed)
}

// Check normalizes s and reports whether it was already canonical.
func Check(s string) Result {
	c := Canonical(s)
	return Result{Canonical: c, Changed: c != s}
}
