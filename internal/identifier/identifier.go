// Package identifier normalizes customer tax identifiers. An individual
// identifier has 11 digits, an organization identifier 14.
package identifier

import "strings"

const (
	IndividualLength   = 11
	OrganizationLength = 14
)

// Kind classifies a normalized identifier by length.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindIndividual   Kind = "individual"
	KindOrganization Kind = "organization"
)

// Normalize keeps only ASCII decimal digits.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// IsValid checks the length of an already normalized identifier. Checksums
// are not verified.
func IsValid(normalized string) bool {
	return KindOf(normalized) != KindUnknown
}

// KindOf reports which identifier format normalized matches.
func KindOf(normalized string) Kind {
	switch len(normalized) {
	case IndividualLength:
		return KindIndividual
	case OrganizationLength:
		return KindOrganization
	default:
		return KindUnknown
	}
}
