package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Dag is a directed acyclic graph of function invocations with a single entry
// (slot 0) and a single terminal (the last slot, which has no successor
// entry). Successors[i] lists the slots immediately following slot i;
// predecessors are derived at construction.
type Dag struct {
	Successors    [][]int             `json:"successors"`
	FunctionNames []string            `json:"functionNames"`
	Dependencies  map[string][]string `json:"dependencies"`

	predecessors [][]int
}

// NewDag validates the successor graph and the state dependencies. Successor
// indices must be strictly greater than 0 and strictly less than the number
// of slots.
func NewDag(successors [][]int, functionNames []string, dependencies map[string][]string) (*Dag, error) {
	if len(successors) != len(functionNames)-1 {
		return nil, fmt.Errorf("invalid size of successors and function names: %d vs %d",
			len(successors), len(functionNames)-1)
	}
	predecessors, err := makePredecessors(successors)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(functionNames))
	for _, fn := range functionNames {
		known[fn] = struct{}{}
	}
	for state, fns := range dependencies {
		for _, fn := range fns {
			if _, ok := known[fn]; !ok {
				return nil, fmt.Errorf("could not find the following function that state '%s' depends on: %s", state, fn)
			}
		}
	}
	return &Dag{
		Successors:    successors,
		FunctionNames: functionNames,
		Dependencies:  dependencies,
		predecessors:  predecessors,
	}, nil
}

func (d *Dag) Name() string {
	return strings.Join(d.FunctionNames, "-")
}

func (d *Dag) NumFunctions() int {
	return len(d.FunctionNames)
}

func (d *Dag) UniqueFunctions() []string {
	set := make(map[string]struct{}, len(d.FunctionNames))
	for _, fn := range d.FunctionNames {
		set[fn] = struct{}{}
	}
	return sortedKeys(set)
}

func (d *Dag) EntryFunctionName() string {
	return d.FunctionNames[0]
}

// SuccessorIndices returns the slots immediately following the given slot;
// the terminal slot has none.
func (d *Dag) SuccessorIndices(index int) ([]int, error) {
	if index > len(d.Successors) {
		return nil, fmt.Errorf("out of range function index: %d > %d", index, len(d.Successors))
	}
	if index == len(d.Successors) {
		return nil, nil
	}
	return d.Successors[index], nil
}

// PredecessorIndices returns the slots immediately preceding the given slot;
// the entry slot has none.
func (d *Dag) PredecessorIndices(index int) ([]int, error) {
	if index > len(d.predecessors) {
		return nil, fmt.Errorf("out of range function index: %d > %d", index, len(d.predecessors))
	}
	if index == 0 {
		return nil, nil
	}
	return d.predecessors[index-1], nil
}

// AllStates returns the state names, excluding free states unless asked for.
func (d *Dag) AllStates(includeFree bool) []string {
	set := make(map[string]struct{}, len(d.Dependencies))
	for state, fns := range d.Dependencies {
		if includeFree || len(fns) > 0 {
			set[state] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// StatesFor returns the states the given function depends on.
func (d *Dag) StatesFor(function string) []string {
	set := make(map[string]struct{})
	for state, fns := range d.Dependencies {
		for _, fn := range fns {
			if fn == function {
				set[state] = struct{}{}
				break
			}
		}
	}
	return sortedKeys(set)
}

func (d *Dag) Equal(other *Dag) bool {
	if other == nil {
		return false
	}
	if len(d.Successors) != len(other.Successors) {
		return false
	}
	for i, succ := range d.Successors {
		if len(other.Successors[i]) != len(succ) {
			return false
		}
		for j, s := range succ {
			if other.Successors[i][j] != s {
				return false
			}
		}
	}
	if len(d.FunctionNames) != len(other.FunctionNames) {
		return false
	}
	for i, fn := range d.FunctionNames {
		if other.FunctionNames[i] != fn {
			return false
		}
	}
	return dependenciesEqual(d.Dependencies, other.Dependencies)
}

func (d *Dag) String() string {
	var b strings.Builder
	b.WriteString("{ ")
	for i, succ := range d.Successors {
		if i > 0 {
			b.WriteString("; ")
		}
		names := make([]string, 0, len(succ))
		for _, j := range succ {
			names = append(names, d.FunctionNames[j])
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%s -> %s", d.FunctionNames[i], strings.Join(names, ","))
	}
	b.WriteString(" }")
	return b.String()
}

// DagFromJSON parses the serialized form; a null dependency list means a free
// state.
func DagFromJSON(data []byte) (*Dag, error) {
	var raw struct {
		Successors    [][]int             `json:"successors"`
		FunctionNames []string            `json:"functionNames"`
		Dependencies  map[string][]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid DAG: %w", err)
	}
	if raw.Successors == nil || raw.FunctionNames == nil {
		return nil, fmt.Errorf("invalid JSON content for a DAG")
	}
	if raw.Dependencies == nil {
		raw.Dependencies = map[string][]string{}
	}
	for state, fns := range raw.Dependencies {
		if fns == nil {
			raw.Dependencies[state] = []string{}
		}
	}
	return NewDag(raw.Successors, raw.FunctionNames, raw.Dependencies)
}

func (d *Dag) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// UnmarshalJSON keeps the derived predecessors consistent when a DAG arrives
// embedded in a lambda request.
func (d *Dag) UnmarshalJSON(data []byte) error {
	parsed, err := DagFromJSON(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// ExampleDag is the template emitted by the CLI when asked to generate a DAG
// skeleton.
func ExampleDag() *Dag {
	dag, err := NewDag(
		[][]int{{1, 2}, {3}, {3}},
		[]string{"f0", "f1", "f2", "f2"},
		map[string][]string{
			"s0": {"f0"},
			"s1": {"f0", "f1"},
			"s2": {"f2"},
			"s3": {},
		})
	if err != nil {
		panic(err)
	}
	return dag
}

func makePredecessors(successors [][]int) ([][]int, error) {
	out := make([][]int, len(successors))
	for i, succ := range successors {
		for _, j := range succ {
			if j <= 0 || j-1 >= len(out) {
				return nil, fmt.Errorf("invalid successor graph")
			}
			out[j-1] = append(out[j-1], i)
		}
	}
	return out, nil
}
