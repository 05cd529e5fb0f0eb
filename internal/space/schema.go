// Package space maps continuous vectors in [0, 1]^n onto structured
// configurations over a declared parameter schema.
package space

import (
	"fmt"
	"strings"
)

// Kind tags the variant a Parameter holds.
type Kind int

const (
	// KindOrdinal is an ordered sequence of discrete values
	KindOrdinal Kind = iota + 1
	// KindCategorical is an unordered set of choices with a fixed enumeration order
	KindCategorical
	// KindFloat is a real-valued range [Lower, Upper]
	KindFloat
	// KindInteger is an integer range [Lower, Upper]
	KindInteger
)

func (k Kind) String() string {
	switch k {
	case KindOrdinal:
		return "ordinal"
	case KindCategorical:
		return "categorical"
	case KindFloat:
		return "float"
	case KindInteger:
		return "integer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Parameter is one schema declaration. Values is used by the ordinal and
// categorical kinds, Lower and Upper by the float and integer kinds.
type Parameter struct {
	Name   string
	Kind   Kind
	Values []any
	Lower  float64
	Upper  float64
}

// Ordinal declares an ordinal parameter over the given sequence
func Ordinal(name string, sequence ...any) Parameter {
	return Parameter{Name: name, Kind: KindOrdinal, Values: sequence}
}

// Categorical declares a categorical parameter; choices are indexed in the given order
func Categorical(name string, choices ...any) Parameter {
	return Parameter{Name: name, Kind: KindCategorical, Values: choices}
}

// Float declares a continuous parameter over [lower, upper]
func Float(name string, lower, upper float64) Parameter {
	return Parameter{Name: name, Kind: KindFloat, Lower: lower, Upper: upper}
}

// Integer declares an integer parameter over [lower, upper]
func Integer(name string, lower, upper int) Parameter {
	return Parameter{Name: name, Kind: KindInteger, Lower: float64(lower), Upper: float64(upper)}
}

func (p Parameter) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	switch p.Kind {
	case KindOrdinal, KindCategorical:
		if len(p.Values) == 0 {
			return fmt.Errorf("parameter %s: %s needs at least one value", p.Name, p.Kind)
		}
		for i, v := range p.Values {
			switch v.(type) {
			case string, int, float64, bool:
			default:
				return fmt.Errorf("parameter %s: value %d has unsupported type %T", p.Name, i, v)
			}
		}
	case KindFloat, KindInteger:
		if p.Lower > p.Upper {
			return fmt.Errorf("parameter %s: lower bound %g exceeds upper bound %g", p.Name, p.Lower, p.Upper)
		}
	default:
		return fmt.Errorf("parameter %s: unknown kind %s", p.Name, p.Kind)
	}
	return nil
}

// Schema is an ordered, immutable list of parameter declarations.
// Vector position i always decodes through parameter i.
type Schema struct {
	params []Parameter
	index  map[string]int
}

// NewSchema validates the declarations and returns a schema in the given order
func NewSchema(params ...Parameter) (*Schema, error) {
	s := &Schema{
		params: make([]Parameter, len(params)),
		index:  make(map[string]int, len(params)),
	}
	for i, p := range params {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		s.index[p.Name] = i
		p.Values = append([]any(nil), p.Values...)
		s.params[i] = p
	}
	return s, nil
}

// MustSchema is NewSchema for declarations known to be valid at compile time
func MustSchema(params ...Parameter) *Schema {
	s, err := NewSchema(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of parameters, which is also the vector dimensionality
func (s *Schema) Len() int {
	return len(s.params)
}

// Parameter returns the declaration at position i
func (s *Schema) Parameter(i int) Parameter {
	return s.params[i]
}

// Lookup returns the declaration with the given name
func (s *Schema) Lookup(name string) (Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, false
	}
	return s.params[i], true
}

// Names returns the parameter names in schema order
func (s *Schema) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}
