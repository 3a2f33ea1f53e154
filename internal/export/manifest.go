package export

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// Manifest describes one exported scan.
type Manifest struct {
	SessionID string        `yaml:"session_id"`
	State     string        `yaml:"state"`
	Started   time.Time     `yaml:"started"`
	Finished  time.Time     `yaml:"finished,omitempty"`
	Exported  time.Time     `yaml:"exported"`
	Params    scan.Params   `yaml:"params"`
	Rows      int           `yaml:"rows"`
	Cols      int           `yaml:"cols"`
	Measured  int           `yaml:"measured"`
	Max       *MaxEntry     `yaml:"max,omitempty"`
	Zoom      *ZoomManifest `yaml:"zoom,omitempty"`
	Error     string        `yaml:"error,omitempty"`
	Files     []string      `yaml:"files"`
}

// MaxEntry is a maximum with 1-based row and column.
type MaxEntry struct {
	Index int     `yaml:"index"`
	Row   int     `yaml:"row"`
	Col   int     `yaml:"col"`
	Value float64 `yaml:"value"`
	Name  string  `yaml:"name,omitempty"`
}

// ZoomManifest describes the last zoom scan.
type ZoomManifest struct {
	TargetIndex int       `yaml:"target_index"`
	Complete    bool      `yaml:"complete"`
	Max         *MaxEntry `yaml:"max,omitempty"`
}

func maxEntry(m *scan.Max) *MaxEntry {
	if m == nil {
		return nil
	}
	return &MaxEntry{
		Index: m.Index,
		Row:   m.Cell.Row + 1,
		Col:   m.Cell.Col + 1,
		Value: m.Value,
		Name:  m.Name,
	}
}

// NewManifest builds the manifest of snap.
func NewManifest(snap scan.Snapshot, files []string) Manifest {
	m := Manifest{
		SessionID: snap.ID.String(),
		State:     snap.State.String(),
		Started:   snap.Started,
		Finished:  snap.Finished,
		Exported:  time.Now(),
		Params:    snap.Params,
		Rows:      len(snap.Grid),
		Measured:  snap.Measured,
		Max:       maxEntry(snap.Max),
		Files:     files,
	}
	if m.Rows > 0 {
		m.Cols = len(snap.Grid[0])
	}
	if snap.Err != nil {
		m.Error = snap.Err.Error()
	}
	if z := snap.Zoom; z != nil {
		m.Zoom = &ZoomManifest{
			TargetIndex: z.TargetIndex,
			Complete:    z.Complete,
			Max:         maxEntry(z.Max),
		}
	}
	return m
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("export: manifest: %w", err)
	}
	return enc.Close()
}
