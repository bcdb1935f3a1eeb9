package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/thushan/ferry/internal/core/domain"
)

// stateSizes is the optional sibling block in chain/DAG files declaring the
// byte size of each state to pre-allocate.
type stateSizes struct {
	StateSizes map[string]int `json:"state-sizes"`
}

// LoadChainFile parses a chain JSON file and its optional state-sizes block.
func LoadChainFile(path string) (*domain.Chain, map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read chain file %s: %w", path, err)
	}
	chain, err := domain.ChainFromJSON(data)
	if err != nil {
		return nil, nil, err
	}
	sizes, err := loadSizes(data, chain.AllStates(true))
	if err != nil {
		return nil, nil, err
	}
	return chain, sizes, nil
}

// LoadDagFile parses a DAG JSON file and its optional state-sizes block.
func LoadDagFile(path string) (*domain.Dag, map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read DAG file %s: %w", path, err)
	}
	dag, err := domain.DagFromJSON(data)
	if err != nil {
		return nil, nil, err
	}
	sizes, err := loadSizes(data, dag.AllStates(true))
	if err != nil {
		return nil, nil, err
	}
	return dag, sizes, nil
}

func loadSizes(data []byte, states []string) (map[string]int, error) {
	var block stateSizes
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, err
	}
	if block.StateSizes == nil {
		return map[string]int{}, nil
	}
	for name := range block.StateSizes {
		found := false
		for _, state := range states {
			if state == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("state size declared for unknown state: %s", name)
		}
	}
	return block.StateSizes, nil
}
