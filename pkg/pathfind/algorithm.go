package pathfind

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAlgorithm is returned for an unknown search algorithm selector
var ErrInvalidAlgorithm = errors.New("invalid algorithm")

// ErrInvalidWeight is returned when WeightedHeuristic runs with a weight of
// one or less
var ErrInvalidWeight = errors.New("weighted heuristic needs weight > 1")

// Algorithm selects the priority function driving the traversal
type Algorithm int

const (
	// LeastCost orders states by accumulated edge weight
	LeastCost Algorithm = iota
	// Heuristic orders states by accumulated weight plus the risk heuristic
	Heuristic
	// WeightedHeuristic scales the heuristic by Options.Weight
	WeightedHeuristic
)

var algorithmNames = map[string]Algorithm{
	"least_cost":         LeastCost,
	"dijkstra":           LeastCost,
	"heuristic":          Heuristic,
	"astar":              Heuristic,
	"weighted_heuristic": WeightedHeuristic,
	"weighted_astar":     WeightedHeuristic,
}

// ParseAlgorithm resolves an algorithm name. Names are case-insensitive and
// dashes are treated as underscores. Unknown names fail with ErrInvalidAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if alg, ok := algorithmNames[normalized]; ok {
		return alg, nil
	}
	return 0, fmt.Errorf("%w: %q (expected least_cost, heuristic or weighted_heuristic)", ErrInvalidAlgorithm, name)
}

func (a Algorithm) String() string {
	switch a {
	case LeastCost:
		return "least_cost"
	case Heuristic:
		return "heuristic"
	case WeightedHeuristic:
		return "weighted_heuristic"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Valid reports whether a is one of the known algorithms
func (a Algorithm) Valid() bool {
	return a >= LeastCost && a <= WeightedHeuristic
}

// MarshalText implements encoding.TextMarshaler
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlgorithm, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}
