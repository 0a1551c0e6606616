package trajectory

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/multistatic/internal/fsutil"
)

// WriteCSV writes one headerless "time_step,x,y" row per sample.
func WriteCSV(w io.Writer, t Trajectory) error {
	cw := csv.NewWriter(w)
	for _, s := range t {
		row := []string{strconv.Itoa(s.Step), strconv.Itoa(s.X), strconv.Itoa(s.Y)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trajectory row %d: %w", s.Step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) (Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var out Trajectory
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read trajectory line %d: %w", line, err)
		}

		var vals [3]int
		for i, field := range row {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("read trajectory line %d field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		out = append(out, Sample{Step: vals[0], X: vals[1], Y: vals[2]})
	}
}

// Save overwrites path with the CSV form of t, creating parent directories.
func Save(fsys fsutil.FileSystem, path string, t Trajectory) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create trajectory dir: %w", err)
		}
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create trajectory file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trajectory file: %w", cerr)
		}
	}()

	return WriteCSV(f, t)
}

// Load reads a trajectory file from path.
func Load(fsys fsutil.FileSystem, path string) (Trajectory, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
