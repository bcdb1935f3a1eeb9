package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Chain is an ordered sequence of function invocations, possibly with
// repeated names, plus a static map from state name to the functions that
// depend on it. A state with no dependent functions is a free state.
type Chain struct {
	Functions    []string            `json:"functions"`
	Dependencies map[string][]string `json:"dependencies"`
}

// NewChain validates that every function named in the dependency map appears
// in the sequence.
func NewChain(functions []string, dependencies map[string][]string) (*Chain, error) {
	known := make(map[string]struct{}, len(functions))
	for _, fn := range functions {
		known[fn] = struct{}{}
	}
	for state, fns := range dependencies {
		for _, fn := range fns {
			if _, ok := known[fn]; !ok {
				return nil, fmt.Errorf("could not find the following function that state '%s' depends on: %s", state, fn)
			}
		}
	}
	return &Chain{Functions: functions, Dependencies: dependencies}, nil
}

// Name joins the function sequence with dashes.
func (c *Chain) Name() string {
	return strings.Join(c.Functions, "-")
}

func (c *Chain) UniqueFunctions() []string {
	set := make(map[string]struct{}, len(c.Functions))
	for _, fn := range c.Functions {
		set[fn] = struct{}{}
	}
	return sortedKeys(set)
}

// AllStates returns the state names, excluding free states unless asked for.
func (c *Chain) AllStates(includeFree bool) []string {
	set := make(map[string]struct{}, len(c.Dependencies))
	for state, fns := range c.Dependencies {
		if includeFree || len(fns) > 0 {
			set[state] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// StatesFor returns the states the given function depends on.
func (c *Chain) StatesFor(function string) []string {
	set := make(map[string]struct{})
	for state, fns := range c.Dependencies {
		for _, fn := range fns {
			if fn == function {
				set[state] = struct{}{}
				break
			}
		}
	}
	return sortedKeys(set)
}

func (c *Chain) Equal(other *Chain) bool {
	if other == nil {
		return false
	}
	if len(c.Functions) != len(other.Functions) {
		return false
	}
	for i, fn := range c.Functions {
		if other.Functions[i] != fn {
			return false
		}
	}
	return dependenciesEqual(c.Dependencies, other.Dependencies)
}

// ChainFromJSON parses the serialized form; a null dependency list means a
// free state.
func ChainFromJSON(data []byte) (*Chain, error) {
	var raw struct {
		Functions    []string             `json:"functions"`
		Dependencies map[string][]string  `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid chain: %w", err)
	}
	if raw.Dependencies == nil {
		raw.Dependencies = map[string][]string{}
	}
	for state, fns := range raw.Dependencies {
		if fns == nil {
			raw.Dependencies[state] = []string{}
		}
	}
	return NewChain(raw.Functions, raw.Dependencies)
}

func (c *Chain) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ExampleChain is the template emitted by the CLI when asked to generate a
// chain skeleton.
func ExampleChain() *Chain {
	chain, err := NewChain(
		[]string{"f1", "f2", "f1"},
		map[string][]string{
			"s0": {"f1"},
			"s1": {"f1", "f2"},
			"s2": {"f2"},
			"s3": {},
		})
	if err != nil {
		panic(err)
	}
	return chain
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dependenciesEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for state, fns := range a {
		others, ok := b[state]
		if !ok || len(others) != len(fns) {
			return false
		}
		for i, fn := range fns {
			if others[i] != fn {
				return false
			}
		}
	}
	return true
}
