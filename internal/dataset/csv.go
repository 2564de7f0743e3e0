package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RunColumn is the header of the run-number column.
const RunColumn = "Run No. [0 = most representative]"

// runColumnPrefix identifies the run-number column when reading, so files
// written by older tools (plain "Run No.") are accepted as well.
const runColumnPrefix = "Run No."

// ErrMalformedCSV is returned for files that do not follow the observation layout.
var ErrMalformedCSV = errors.New("malformed observation csv")

// WriteCSV writes the experiment as one row per (group, run, tick). labels
// name the metric columns; when nil the metric names are used. The
// representative run of each group is written with RepresentativeID.
func WriteCSV(w io.Writer, exp *Experiment, labels []string) error {
	if labels == nil {
		labels = exp.Metrics
	}
	if len(labels) != len(exp.Metrics) {
		return fmt.Errorf("write csv: %d labels for %d metrics", len(labels), len(exp.Metrics))
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(labels)+2)
	if exp.Swept() {
		header = append(header, exp.Parameter)
	}
	header = append(header, RunColumn)
	header = append(header, labels...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, g := range exp.Groups {
		for pos, r := range g.Runs {
			id := r.ID
			if pos == g.Representative {
				id = RepresentativeID
			}
			for t, values := range r.Values {
				if len(values) != len(exp.Metrics) {
					return fmt.Errorf("write csv: run %d tick %d has %d values, want %d", r.ID, t, len(values), len(exp.Metrics))
				}
				col := 0
				if exp.Swept() {
					row[col] = formatFloat(g.Value)
					col++
				}
				row[col] = strconv.Itoa(id)
				col++
				for _, v := range values {
					row[col] = formatFloat(v)
					col++
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. The sweep column is detected
// from the header: a first column that is not the run column names the swept
// parameter. A run numbered RepresentativeID becomes the group's
// representative and is renumbered into the gap it left.
func ReadCSV(r io.Reader) (*Experiment, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMalformedCSV)
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	exp := &Experiment{}
	offset := 0
	if !strings.HasPrefix(strings.TrimSpace(header[0]), runColumnPrefix) {
		exp.Parameter = strings.TrimSpace(header[0])
		offset = 1
	}
	if len(header) < offset+2 {
		return nil, fmt.Errorf("%w: header %q has no metric columns", ErrMalformedCSV, header)
	}
	for _, h := range header[offset+1:] {
		exp.Metrics = append(exp.Metrics, strings.TrimSpace(h))
	}
	width := len(header)

	groupIndex := map[float64]int{}
	var (
		lastGroup = -1
		lastRun   = -1
		line      = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(rec) != width {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformedCSV, line, len(rec), width)
		}

		var value float64
		if offset == 1 {
			if value, err = parseFloat(rec[0]); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
			}
		}
		runF, err := parseFloat(rec[offset])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		runID := int(runF)
		values := make([]float64, len(exp.Metrics))
		for i, field := range rec[offset+1:] {
			if values[i], err = parseFloat(field); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
			}
		}

		gi, ok := groupIndex[value]
		if !ok {
			exp.Groups = append(exp.Groups, NewGroup(value, nil))
			gi = len(exp.Groups) - 1
			groupIndex[value] = gi
		}
		g := &exp.Groups[gi]

		// A run continues while consecutive rows share group and run number.
		if gi != lastGroup || runID != lastRun {
			g.Runs = append(g.Runs, Run{ID: runID})
			if runID == RepresentativeID {
				g.Representative = len(g.Runs) - 1
			}
			lastGroup, lastRun = gi, runID
		}
		run := &g.Runs[len(g.Runs)-1]
		run.Values = append(run.Values, values)
	}

	if len(exp.Groups) == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrMalformedCSV)
	}
	for i := range exp.Groups {
		restoreRunNumber(&exp.Groups[i])
	}
	return exp, nil
}

// restoreRunNumber gives the representative run back the number it replaced:
// the smallest run number not used by another run of the group.
func restoreRunNumber(g *Group) {
	if g.Representative < 0 {
		return
	}
	used := make(map[int]bool, len(g.Runs))
	for _, r := range g.Runs {
		used[r.ID] = true
	}
	id := 1
	for used[id] {
		id++
	}
	g.Runs[g.Representative].ID = id
}

// WriteFile writes the experiment CSV to path.
func WriteFile(path string, exp *Experiment, labels []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return WriteCSV(f, exp, labels)
}

// ReadFile reads an experiment CSV from path.
func ReadFile(path string) (*Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	exp, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
