package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	lossFile     = "loss.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// RunMetadata describes one training run.
type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	Model     string    `json:"model"`
	Reference string    `json:"reference"`
	Timestamp time.Time `json:"timestamp"`
	Seed      int64     `json:"seed"`
	Solver    string    `json:"solver,omitempty"`
	Start     float64   `json:"start"`
	Stop      float64   `json:"stop"`
	Step      float64   `json:"step"`

	Iterations int    `json:"iterations"`
	Phase      string `json:"phase"`
	// FinalLoss and BestLoss are nil when training never produced a finite
	// loss.
	FinalLoss *float64      `json:"final_loss,omitempty"`
	BestLoss  *float64      `json:"best_loss,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`

	// Targets are the reference variables the loss compared, Outputs the
	// matching hybrid model columns.
	Targets []string `json:"targets,omitempty"`
	Outputs []int    `json:"outputs,omitempty"`

	// Params are the trained network parameters.
	Params []float64 `json:"params,omitempty"`
	// Stats are hybrid model diagnostics such as adapter calls and solver steps.
	Stats map[string]float64 `json:"stats,omitempty"`
	// Trajectories names the CSV files saved with the run.
	Trajectories []string `json:"trajectories"`
}

// Run bundles everything SaveRun persists.
type Run struct {
	Meta         RunMetadata
	Trajectories map[string]dynamo.Trajectory
	Loss         []float64
}

// SaveRun writes a new run directory and returns its ID.
func (s *Store) SaveRun(run Run) (string, error) {
	meta := run.Meta
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.Name, meta.Timestamp.UnixNano())
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.FinalLoss, meta.BestLoss = finitePtr(meta.FinalLoss), finitePtr(meta.BestLoss)
	meta.Trajectories = make([]string, 0, len(run.Trajectories))
	for name := range run.Trajectories {
		meta.Trajectories = append(meta.Trajectories, name)
	}
	sort.Strings(meta.Trajectories)

	for _, name := range meta.Trajectories {
		if err := s.SaveTrajectory(meta.ID, name, run.Trajectories[name]); err != nil {
			return "", err
		}
	}
	if err := s.saveLoss(meta.ID, run.Loss); err != nil {
		return "", err
	}
	if err := s.writeMetadata(meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) writeMetadata(meta RunMetadata) error {
	metaFile, err := os.Create(filepath.Join(s.baseDir, meta.ID, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// SaveTrajectory writes tr as <name>.csv with a time column followed by
// one column per component.
func (s *Store) SaveTrajectory(runID, name string, tr dynamo.Trajectory) error {
	file, err := os.Create(s.trajectoryPath(runID, name))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"time"}
	names := tr.Names()
	for i := 0; i < tr.Dim(); i++ {
		if names != nil {
			header = append(header, names[i])
		} else {
			header = append(header, fmt.Sprintf("x%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < tr.Len(); i++ {
		row := []string{formatFloat(tr.Time(i))}
		for _, val := range tr.Value(i) {
			row = append(row, formatFloat(val))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) LoadTrajectory(runID, name string) (dynamo.Trajectory, error) {
	records, err := readCSV(s.trajectoryPath(runID, name))
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	if len(records) == 0 {
		return dynamo.Trajectory{}, fmt.Errorf("trajectory %s/%s: missing header", runID, name)
	}

	names := records[0][1:]
	times := make([]float64, 0, len(records)-1)
	values := make([]dynamo.State, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseRow(record)
		if err != nil {
			return dynamo.Trajectory{}, fmt.Errorf("trajectory %s/%s row %d: %w", runID, name, i+1, err)
		}
		times = append(times, row[0])
		values = append(values, dynamo.State(row[1:]))
	}
	return dynamo.NewTrajectory(times, values, names)
}

func (s *Store) saveLoss(runID string, history []float64) error {
	file, err := os.Create(filepath.Join(s.baseDir, runID, lossFile))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"iteration", "loss"}); err != nil {
		return err
	}
	for i, l := range history {
		if err := w.Write([]string{strconv.Itoa(i + 1), formatFloat(l)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadLoss returns the per-iteration loss history of a run.
func (s *Store) LoadLoss(runID string) ([]float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, lossFile))
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []float64{}, nil
	}
	history := make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		l, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("loss history of %s: %w", runID, err)
		}
		history = append(history, l)
	}
	return history, nil
}

func (s *Store) trajectoryPath(runID, name string) string {
	return filepath.Join(s.baseDir, runID, name+".csv")
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for j, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		row[j] = v
	}
	return row, nil
}

// Loss returns a pointer to v, or nil when v is NaN or Inf, which JSON
// cannot encode.
func Loss(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finitePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Loss(*p)
}

// FormatLoss renders an optional loss for tables, "-" when absent.
func FormatLoss(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'g', 6, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
