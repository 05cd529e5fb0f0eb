package nasbench

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/denas/internal/space"
)

// Cell is a DAG over Ops where Matrix[i][j] marks an edge i -> j (i < j).
// Node 0 is the input and the last node the output.
type Cell struct {
	Matrix [][]bool
	Ops    []string
}

// Cell builds the cell a decoded configuration describes
func (ss *SearchSpace) Cell(cfg space.Configuration) (*Cell, error) {
	n := ss.outputNode() + 1
	cell := &Cell{
		Matrix: make([][]bool, n),
		Ops:    make([]string, n),
	}
	for i := range cell.Matrix {
		cell.Matrix[i] = make([]bool, n)
	}
	cell.Ops[0] = OpInput
	cell.Ops[n-1] = OpOutput

	for node := 1; node <= ss.NumIntermediate; node++ {
		op, ok := cfg[OpKey(node)].(string)
		if !ok {
			return nil, fmt.Errorf("configuration is missing %s", OpKey(node))
		}
		cell.Ops[node] = op
	}
	for node := 1; node < n; node++ {
		label, ok := cfg[ParentsKey(node)].(string)
		if !ok {
			return nil, fmt.Errorf("configuration is missing %s", ParentsKey(node))
		}
		parents, err := ParseParents(label)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if p < 0 || p >= node {
				return nil, fmt.Errorf("node %d: parent %d is not an earlier node", node, p)
			}
			cell.Matrix[p][node] = true
		}
	}
	return cell, nil
}

// Size returns the number of nodes
func (c *Cell) Size() int {
	return len(c.Ops)
}

// Edges returns the number of edges
func (c *Cell) Edges() int {
	edges := 0
	for _, row := range c.Matrix {
		for _, e := range row {
			if e {
				edges++
			}
		}
	}
	return edges
}

// Prune returns the cell restricted to nodes that lie on some input -> output
// path. A cell whose output is unreachable prunes to nil.
func (c *Cell) Prune() *Cell {
	n := c.Size()
	if n == 0 {
		return nil
	}
	fromInput := make([]bool, n)
	fromInput[0] = true
	for j := 1; j < n; j++ {
		for i := 0; i < j; i++ {
			if fromInput[i] && c.Matrix[i][j] {
				fromInput[j] = true
				break
			}
		}
	}
	toOutput := make([]bool, n)
	toOutput[n-1] = true
	for i := n - 2; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			if toOutput[j] && c.Matrix[i][j] {
				toOutput[i] = true
				break
			}
		}
	}
	if !fromInput[n-1] {
		return nil
	}

	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if fromInput[i] && toOutput[i] {
			keep = append(keep, i)
		}
	}
	pruned := &Cell{
		Matrix: make([][]bool, len(keep)),
		Ops:    make([]string, len(keep)),
	}
	for a, i := range keep {
		pruned.Ops[a] = c.Ops[i]
		pruned.Matrix[a] = make([]bool, len(keep))
		for b, j := range keep {
			pruned.Matrix[a][b] = c.Matrix[i][j]
		}
	}
	return pruned
}

// Valid reports whether the output is reachable from the input
func (c *Cell) Valid() bool {
	return c.Prune() != nil
}

// Fingerprint identifies the pruned cell: a sha256 over its adjacency rows
// and op labels. Cells that differ only in unreachable nodes share a
// fingerprint; isomorphic relabelings do not.
func (c *Cell) Fingerprint() (string, error) {
	pruned := c.Prune()
	if pruned == nil {
		return "", fmt.Errorf("cell has no input to output path")
	}
	var b strings.Builder
	for i, row := range pruned.Matrix {
		if i > 0 {
			b.WriteByte('|')
		}
		for _, e := range row {
			if e {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	b.WriteByte(';')
	b.WriteString(strings.Join(pruned.Ops, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
