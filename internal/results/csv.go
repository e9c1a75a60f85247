// Package results reads and writes phase-diagram and trace CSV files and
// aggregates results across episodes.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/spatial-dilemma/internal/model"
)

var (
	resultHeader = []string{"Dg", "Dr", "Fc"}
	traceHeader  = []string{"time", "Fc"}
	ensembleHead = []string{"Dg", "Dr", "Fc", "Variance", "Episodes"}
)

// PhaseDiagramPath returns the per-episode results file inside dir.
func PhaseDiagramPath(dir string, episode int) string {
	return filepath.Join(dir, fmt.Sprintf("phase_diagram%d.csv", episode))
}

// TracePath returns the trace file of one parameter point inside dir.
func TracePath(dir string, p model.Params) string {
	return filepath.Join(dir, fmt.Sprintf("time_evolution_Dg_%.1f_Dr_%.1f.csv", p.Dg, p.Dr))
}

// WriteCSV writes one "Dg,Dr,Fc" row per result, Dg and Dr with one
// decimal and Fc with three.
func WriteCSV(w io.Writer, rows []model.EpisodeResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(resultHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			strconv.FormatFloat(r.Dg, 'f', 1, 64),
			strconv.FormatFloat(r.Dr, 'f', 1, 64),
			strconv.FormatFloat(r.Fc, 'f', 3, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV parses rows written by WriteCSV. Episode, Outcome, and Rounds
// are not part of the file and stay zero.
func ReadCSV(r io.Reader) ([]model.EpisodeResult, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.EpisodeResult{}, nil
		}
		return nil, err
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("results header must have at least 3 columns")
	}

	out := make([]model.EpisodeResult, 0, 121)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		values, err := parseFloats(record, 3)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, model.EpisodeResult{Dg: values[0], Dr: values[1], Fc: values[2]})
	}
	return out, nil
}

// WriteTraceCSV writes one "time,Fc" row per round.
func WriteTraceCSV(w io.Writer, points []model.TracePoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(traceHeader); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			strconv.Itoa(p.Round),
			strconv.FormatFloat(p.Fc, 'f', 3, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTraceCSV parses rows written by WriteTraceCSV.
func ReadTraceCSV(r io.Reader) ([]model.TracePoint, error) {
	reader := csv.NewReader(r)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.TracePoint{}, nil
		}
		return nil, err
	}

	var out []model.TracePoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: trace row must have 2 columns", line)
		}
		round, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fc, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, model.TracePoint{Round: round, Fc: fc})
	}
	return out, nil
}

// WriteEnsembleCSV writes the ensemble mean as Fc, followed by the sample
// variance and the episode count.
func WriteEnsembleCSV(w io.Writer, points []model.EnsemblePoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ensembleHead); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			strconv.FormatFloat(p.Dg, 'f', 1, 64),
			strconv.FormatFloat(p.Dr, 'f', 1, 64),
			strconv.FormatFloat(p.Mean, 'f', 3, 64),
			strconv.FormatFloat(p.Variance, 'f', 4, 64),
			strconv.Itoa(p.Episodes),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePhaseDiagram writes one episode's results to dir, creating dir if
// needed, and returns the file path.
func WritePhaseDiagram(dir string, episode int, rows []model.EpisodeResult) (string, error) {
	path := PhaseDiagramPath(dir, episode)
	return path, writeFile(path, func(w io.Writer) error { return WriteCSV(w, rows) })
}

// ReadPhaseDiagram reads one episode's results from dir and tags them with
// the episode index.
func ReadPhaseDiagram(dir string, episode int) ([]model.EpisodeResult, error) {
	file, err := os.Open(PhaseDiagramPath(dir, episode))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name(), err)
	}
	for i := range rows {
		rows[i].Episode = episode
	}
	return rows, nil
}

// WriteTraceFile writes a trace for p to dir and returns the file path.
func WriteTraceFile(dir string, p model.Params, points []model.TracePoint) (string, error) {
	path := TracePath(dir, p)
	return path, writeFile(path, func(w io.Writer) error { return WriteTraceCSV(w, points) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func parseFloats(record []string, n int) ([]float64, error) {
	if len(record) < n {
		return nil, fmt.Errorf("row must have %d columns, got %d", n, len(record))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
