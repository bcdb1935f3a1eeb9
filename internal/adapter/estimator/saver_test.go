package estimator

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaverWritesTimestampedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.csv")
	saver, err := NewSaver(path)
	require.NoError(t, err)

	saver.Save("f dest-0", 100, 42, 0.001, 0.002, 0.010, 0.012)
	saver.Save("f dest-1", 200, 7)
	require.NoError(t, saver.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 8) // timestamp, label, six values
	assert.Equal(t, "f dest-0", rows[0][1])
	assert.Equal(t, "100", rows[0][2])
	assert.Len(t, rows[1], 4)
}

func TestSaverNilAndEmptyPathAreNoops(t *testing.T) {
	saver, err := NewSaver("")
	require.NoError(t, err)
	assert.Nil(t, saver)

	// a nil saver swallows writes and closes
	saver.Save("ignored", 1)
	assert.NoError(t, saver.Close())
}
