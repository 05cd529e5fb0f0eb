package space

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is matched by every SchemaMismatchError
var ErrSchemaMismatch = errors.New("vector length does not match schema")

// SchemaMismatchError reports a vector whose length differs from the schema size
type SchemaMismatchError struct {
	Want int
	Got  int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: schema has %d parameters, vector has %d entries", e.Want, e.Got)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// UnknownFixTypeError indicates an unsupported repair mode name
type UnknownFixTypeError struct {
	FixType string
}

func (e *UnknownFixTypeError) Error() string {
	return "unknown fix type: " + e.FixType
}
