package space

import (
	"math"
	"strings"
)

// FixType selects how Repair replaces entries outside [0, 1]
type FixType string

const (
	// FixRandom replaces each violation with a uniform draw from [0, 1)
	FixRandom FixType = "random"
	// FixClip replaces each violation with the nearer bound; NaN becomes 0
	FixClip FixType = "clip"
)

// ParseFixType returns the repair mode with the given name. An empty name
// selects FixRandom.
func ParseFixType(name string) (FixType, error) {
	switch FixType(strings.ToLower(strings.TrimSpace(name))) {
	case "", FixRandom:
		return FixRandom, nil
	case FixClip:
		return FixClip, nil
	default:
		return "", &UnknownFixTypeError{FixType: name}
	}
}

// Float64Source is the random source Repair draws replacements from.
// *math/rand.Rand and *utils.RandSource both satisfy it.
type Float64Source interface {
	Float64() float64
}

// Violations returns the indices of entries that are below 0, above 1 or NaN
func Violations(vector []float64) []int {
	var out []int
	for i, v := range vector {
		if !inUnitInterval(v) {
			out = append(out, i)
		}
	}
	return out
}

// Repair returns a copy of vector in which every entry lies in [0, 1].
// In-range entries are copied unchanged. The input slice is never modified.
// Unknown fix types are treated as FixClip, which needs no randomness; rng
// may be nil for FixClip. FixRandom with a nil rng panics when the vector has
// a violation.
func Repair(vector []float64, fix FixType, rng Float64Source) []float64 {
	out := make([]float64, len(vector))
	copy(out, vector)
	for _, i := range Violations(vector) {
		if fix == FixRandom {
			if rng == nil {
				panic("space: random repair requires a random source")
			}
			out[i] = rng.Float64()
			continue
		}
		out[i] = clip(vector[i])
	}
	return out
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func clip(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return 1
}
