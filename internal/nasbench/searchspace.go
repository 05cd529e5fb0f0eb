// Package nasbench describes the NAS-Bench-1shot1 style cell search spaces
// and turns decoded configurations into cells that can be looked up in a
// tabular benchmark.
package nasbench

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/denas/internal/space"
)

// Operation labels used in cells
const (
	OpInput   = "input"
	OpOutput  = "output"
	OpConv1x1 = "conv1x1-bn-relu"
	OpConv3x3 = "conv3x3-bn-relu"
	OpMaxPool = "maxpool3x3"
)

const (
	parentsSep       = "-"
	opKeyFormat      = "choice_block_%d_op"
	parentsKeyFormat = "choice_block_%d_parents"
)

// Operations is the candidate set for every intermediate node, in enumeration order
var Operations = []string{OpConv1x1, OpConv3x3, OpMaxPool}

// SearchSpace is a cell topology family: a fixed number of intermediate
// nodes, each with a fixed number of parents chosen among earlier nodes.
// Node 0 is the input and node NumIntermediate+1 the output.
type SearchSpace struct {
	ID              int
	NumIntermediate int
	// ParentsPerNode[i] is the number of parents of node i; index 0 (input) is unused.
	ParentsPerNode []int
	schema         *space.Schema
}

// UnknownSearchSpaceError indicates a search space id without a definition
type UnknownSearchSpaceError struct {
	ID int
}

func (e *UnknownSearchSpaceError) Error() string {
	return fmt.Sprintf("unknown search space: %d (must be 1, 2 or 3)", e.ID)
}

var builtins = map[int][]int{
	1: {0, 1, 2, 2, 2, 2},
	2: {0, 1, 1, 2, 2, 3},
	3: {0, 1, 1, 1, 2, 2, 2},
}

// IDs returns the ids of the built-in search spaces in ascending order
func IDs() []int {
	ids := make([]int, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Space returns the built-in search space with the given id
func Space(id int) (*SearchSpace, error) {
	parents, ok := builtins[id]
	if !ok {
		return nil, &UnknownSearchSpaceError{ID: id}
	}
	return NewSearchSpace(id, parents)
}

// NewSearchSpace builds a search space from a parents-per-node table. The
// table covers the input (index 0, ignored), every intermediate node and the
// output as its last entry.
func NewSearchSpace(id int, parentsPerNode []int) (*SearchSpace, error) {
	if len(parentsPerNode) < 3 {
		return nil, fmt.Errorf("search space %d: need input, at least one intermediate node and output", id)
	}
	for node := 1; node < len(parentsPerNode); node++ {
		n := parentsPerNode[node]
		if n < 1 || n > node {
			return nil, fmt.Errorf("search space %d: node %d cannot have %d parents among %d earlier nodes", id, node, n, node)
		}
	}
	ss := &SearchSpace{
		ID:              id,
		NumIntermediate: len(parentsPerNode) - 2,
		ParentsPerNode:  append([]int(nil), parentsPerNode...),
	}
	schema, err := space.NewSchema(ss.parameters()...)
	if err != nil {
		return nil, fmt.Errorf("search space %d: %w", id, err)
	}
	ss.schema = schema
	return ss, nil
}

// Schema returns the parameter schema the optimizer's vectors decode through
func (ss *SearchSpace) Schema() *space.Schema {
	return ss.schema
}

// Dimensions returns the vector length the search space expects
func (ss *SearchSpace) Dimensions() int {
	return ss.schema.Len()
}

// outputNode returns the index of the output node
func (ss *SearchSpace) outputNode() int {
	return ss.NumIntermediate + 1
}

func (ss *SearchSpace) parameters() []space.Parameter {
	ops := make([]any, len(Operations))
	for i, op := range Operations {
		ops[i] = op
	}
	params := make([]space.Parameter, 0, 2*ss.NumIntermediate+1)
	for node := 1; node <= ss.NumIntermediate; node++ {
		params = append(params, space.Categorical(OpKey(node), ops...))
	}
	for node := 1; node <= ss.outputNode(); node++ {
		combos := combinations(node, ss.ParentsPerNode[node])
		choices := make([]any, len(combos))
		for i, c := range combos {
			choices[i] = FormatParents(c)
		}
		params = append(params, space.Categorical(ParentsKey(node), choices...))
	}
	return params
}

// OpKey returns the configuration key holding the operation of a node
func OpKey(node int) string {
	return fmt.Sprintf(opKeyFormat, node)
}

// ParentsKey returns the configuration key holding the parents of a node
func ParentsKey(node int) string {
	return fmt.Sprintf(parentsKeyFormat, node)
}

// FormatParents renders a parent set as a choice label, e.g. "0-2"
func FormatParents(parents []int) string {
	parts := make([]string, len(parents))
	for i, p := range parents {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, parentsSep)
}

// ParseParents is the inverse of FormatParents
func ParseParents(label string) ([]int, error) {
	parts := strings.Split(label, parentsSep)
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid parent label %q: %w", label, err)
		}
		out[i] = n
	}
	return out, nil
}

// combinations returns every k-subset of {0..n-1} in lexicographic order
func combinations(n, k int) [][]int {
	var out [][]int
	cur := make([]int, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i <= n-(k-len(cur)); i++ {
			cur = append(cur, i)
			rec(i + 1)
			cur = cur[:len(cur)-1]
		}
	}
	rec(0)
	return out
}
