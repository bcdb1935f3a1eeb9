package estimator

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Saver streams measurement rows to a CSV file, one flush per row. A nil
// Saver or an empty path discards everything.
type Saver struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

func NewSaver(path string) (*Saver, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open measurement output %s: %w", path, err)
	}
	return &Saver{
		file:   file,
		writer: csv.NewWriter(file),
		now:    time.Now,
	}, nil
}

// Save writes one timestamped row: a label followed by the values.
func (s *Saver) Save(label string, values ...float64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := make([]string, 0, len(values)+2)
	row = append(row, strconv.FormatFloat(float64(s.now().UnixNano())*1e-9, 'f', 6, 64), label)
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	_ = s.writer.Write(row)
	s.writer.Flush()
}

func (s *Saver) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	return s.file.Close()
}
