package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadChainFileWithStateSizes(t *testing.T) {
	path := writeFile(t, "chain.json", `{
		"functions": ["f1", "f2"],
		"dependencies": {"s0": ["f1"], "s1": null},
		"state-sizes": {"s0": 1024, "s1": 64}
	}`)

	chain, sizes, err := LoadChainFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, chain.Functions)
	assert.Equal(t, map[string]int{"s0": 1024, "s1": 64}, sizes)
}

func TestLoadChainFileRejectsSizeForUnknownState(t *testing.T) {
	path := writeFile(t, "chain.json", `{
		"functions": ["f1"],
		"dependencies": {"s0": ["f1"]},
		"state-sizes": {"ghost": 10}
	}`)

	_, _, err := LoadChainFile(path)
	require.Error(t, err)
}

func TestLoadDagFile(t *testing.T) {
	dag := domain.ExampleDag()
	data, err := dag.ToJSON()
	require.NoError(t, err)
	path := writeFile(t, "dag.json", string(data))

	parsed, sizes, err := LoadDagFile(path)
	require.NoError(t, err)
	assert.True(t, dag.Equal(parsed))
	assert.Empty(t, sizes)
}

func TestLoadChainFileMissing(t *testing.T) {
	_, _, err := LoadChainFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
