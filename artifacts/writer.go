package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Writer puts artifacts into a single directory.
type Writer struct {
	Dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Writer{Dir: dir}, nil
}

func (w *Writer) path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteCSV writes one value per line.
func (w *Writer) WriteCSV(name string, values []float64) error {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{strconv.FormatFloat(v, 'e', -1, 64)}
	}
	return w.writeRows(name, rows)
}

// WriteTimesCSV writes one nanosecond timestamp per line.
func (w *Writer) WriteTimesCSV(name string, times []int64) error {
	rows := make([][]string, len(times))
	for i, t := range times {
		rows[i] = []string{strconv.FormatInt(t, 10)}
	}
	return w.writeRows(name, rows)
}

func (w *Writer) writeRows(name string, rows [][]string) error {
	file, err := os.Create(w.path(name))
	if err != nil {
		return err
	}
	cw := csv.NewWriter(file)
	if err := cw.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return file.Close()
}

// ReadCSV reads back a single column file written by WriteCSV.
func ReadCSV(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		values = append(values, v)
	}
	return values, nil
}
