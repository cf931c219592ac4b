package core

import "fmt"

// Complexity is the tier that decides which phases run and in what order.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"       // single file, no dependencies
	ComplexityModerate    Complexity = "moderate"     // several files, some dependencies
	ComplexityComplex     Complexity = "complex"      // many files, tangled dependencies
	ComplexityVeryComplex Complexity = "very_complex" // sweeping changes
)

// AllComplexities returns the tiers in ascending order.
func AllComplexities() []Complexity {
	return []Complexity{
		ComplexitySimple,
		ComplexityModerate,
		ComplexityComplex,
		ComplexityVeryComplex,
	}
}

// ValidComplexity reports whether c is a known tier.
func ValidComplexity(c Complexity) bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityVeryComplex:
		return true
	default:
		return false
	}
}

// ParseComplexity converts a string to a Complexity with validation.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	if !ValidComplexity(c) {
		return "", fmt.Errorf("invalid complexity: %s", s)
	}
	return c, nil
}

func (c Complexity) String() string {
	return string(c)
}
