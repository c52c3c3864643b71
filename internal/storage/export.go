package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

type ExportTrajectory struct {
	Names  []string    `json:"names"`
	Times  []float64   `json:"times"`
	Values [][]float64 `json:"values"`
}

type ExportData struct {
	Run          RunMetadata                 `json:"run"`
	Trajectories map[string]ExportTrajectory `json:"trajectories"`
	// Loss holds null where the history went non-finite.
	Loss []*float64 `json:"loss"`
}

// Collect gathers a stored run into one exportable document.
func (s *Store) Collect(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data := &ExportData{Run: *meta, Trajectories: make(map[string]ExportTrajectory, len(meta.Trajectories))}

	for _, name := range meta.Trajectories {
		tr, err := s.LoadTrajectory(runID, name)
		if err != nil {
			return nil, err
		}
		data.Trajectories[name] = exportTrajectory(tr)
	}

	history, err := s.LoadLoss(runID)
	if err != nil {
		return nil, err
	}
	data.Loss = make([]*float64, len(history))
	for i, l := range history {
		data.Loss[i] = Loss(l)
	}
	return data, nil
}

func exportTrajectory(tr dynamo.Trajectory) ExportTrajectory {
	out := ExportTrajectory{Names: tr.Names(), Times: tr.Times(), Values: make([][]float64, tr.Len())}
	for i := range out.Values {
		out.Values[i] = tr.Value(i)
	}
	return out
}

// WriteExport encodes a run as indented JSON to w. Non-finite losses are
// written as null.
func (s *Store) WriteExport(runID string, w io.Writer) error {
	data, err := s.Collect(runID)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Export writes a run to path as JSON, zstd-compressed when path ends in
// ".zst". The path "-" writes to stdout.
func (s *Store) Export(runID, path string) error {
	if path == "-" {
		return s.WriteExport(runID, os.Stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if !strings.HasSuffix(path, ".zst") {
		return s.WriteExport(runID, file)
	}

	w, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := s.WriteExport(runID, w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return nil
}

// ReadExport decodes an export written by Export, compressed or not.
func ReadExport(path string) (*ExportData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	return &data, nil
}
