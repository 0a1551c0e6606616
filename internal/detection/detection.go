// Package detection reads and writes the simulator's detection log.
//
// The log is a CSV file with one header row followed by rows of
// time_step,x,y,sensor_row,sensor_col. x and y are plot coordinates of the
// detected object; sensor_row and sensor_col identify the reporting sensor in
// grid-index space.
package detection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/grid"
)

// Header is the header row written by Write.
var Header = []string{"time_step", "x", "y", "sensor_row", "sensor_col"}

const fieldsPerRecord = 5

// ErrEmptyLog is returned when the log has no header row.
var ErrEmptyLog = errors.New("detection log is empty")

// Record is one detection event reported by the simulator.
type Record struct {
	Step      int `json:"time_step"`
	X         int `json:"x"`
	Y         int `json:"y"`
	SensorRow int `json:"sensor_row"`
	SensorCol int `json:"sensor_col"`
}

// Point is the detected plot position.
func (r Record) Point() grid.Point {
	return grid.Point{X: r.X, Y: r.Y}
}

// Origin is the plot position of the reporting sensor.
func (r Record) Origin(g grid.Grid) grid.Point {
	return g.Position(r.SensorRow, r.SensorCol)
}

// ParseError reports a malformed row. Line is 1-based and counts the header.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("detection log line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse skips the header row and decodes every following row. Parsing is
// all-or-nothing: the first malformed row aborts with a *ParseError.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyLog
		}
		return nil, &ParseError{Line: 1, Err: err}
	}

	records := []Record{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		rec, err := decode(row)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		records = append(records, rec)
	}
}

func decode(row []string) (Record, error) {
	if len(row) != fieldsPerRecord {
		return Record{}, fmt.Errorf("expected %d fields, got %d", fieldsPerRecord, len(row))
	}
	var vals [fieldsPerRecord]int
	for i, field := range row {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return Record{}, fmt.Errorf("field %s: %w", Header[i], err)
		}
		vals[i] = v
	}
	return Record{Step: vals[0], X: vals[1], Y: vals[2], SensorRow: vals[3], SensorCol: vals[4]}, nil
}

// ParseFile opens path and parses it. A missing file is reported as an
// error like any other read failure.
func ParseFile(fsys fsutil.FileSystem, path string) ([]Record, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detection log: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

// Write emits the header followed by one row per record.
func Write(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write detection header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			strconv.Itoa(rec.Step),
			strconv.Itoa(rec.X),
			strconv.Itoa(rec.Y),
			strconv.Itoa(rec.SensorRow),
			strconv.Itoa(rec.SensorCol),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write detection row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save overwrites path with the CSV form of records.
func Save(fsys fsutil.FileSystem, path string, records []Record) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create detection log dir: %w", err)
		}
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create detection log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close detection log: %w", cerr)
		}
	}()

	return Write(f, records)
}
