package space

import (
	"math"
	"sort"
)

// Configuration is a decoded, named parameter assignment.
// Discrete parameters hold one of their declared values, integer parameters
// an int and float parameters a float64.
type Configuration map[string]any

// Names returns the configuration keys in sorted order
func (c Configuration) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode maps vector onto a configuration over schema. Entries are expected
// in [0, 1]; callers should Repair first. Out-of-range entries still decode:
// discrete buckets clamp to the first or last value, integers clamp to
// [Lower, Upper] (NaN to Lower) and floats extrapolate linearly.
func Decode(schema *Schema, vector []float64) (Configuration, error) {
	if len(vector) != schema.Len() {
		return nil, &SchemaMismatchError{Want: schema.Len(), Got: len(vector)}
	}
	cfg := make(Configuration, schema.Len())
	for i, p := range schema.params {
		cfg[p.Name] = decodeParameter(p, vector[i])
	}
	return cfg, nil
}

func decodeParameter(p Parameter, v float64) any {
	switch p.Kind {
	case KindOrdinal, KindCategorical:
		return p.Values[Bucket(len(p.Values), v)]
	case KindFloat:
		return rescale(p, v)
	case KindInteger:
		x := rescale(p, v)
		switch {
		case math.IsNaN(x) || x < p.Lower:
			x = p.Lower
		case x > p.Upper:
			x = p.Upper
		}
		return int(math.RoundToEven(x))
	}
	// NewSchema rejects every other kind.
	panic("space: unreachable parameter kind " + p.Kind.String())
}

func rescale(p Parameter, v float64) float64 {
	return p.Lower + (p.Upper-p.Lower)*v
}

// Bucket returns the index of the equal-width bin of [0, 1) that v falls in
// when [0, 1) is split into k bins. The lower edge of bin j is j*(1/k) and is
// inclusive, so a value exactly on an edge selects the higher bin. Values at
// or above 1 select k-1; values below 0 and NaN select 0.
func Bucket(k int, v float64) int {
	if k <= 1 || !(v > 0) {
		return 0
	}
	if v >= 1 {
		return k - 1
	}
	step := 1 / float64(k)
	j := min(int(v*float64(k)), k-1)
	// v*k can land one bin off the edges the step produces; correct it.
	for j+1 < k && float64(j+1)*step <= v {
		j++
	}
	for j > 0 && float64(j)*step > v {
		j--
	}
	return j
}
