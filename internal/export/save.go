package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// ErrNothingToSave is returned by SaveAll before any area scan.
var ErrNothingToSave = errors.New("export: no scan results")

// SaveAll writes every export of snap into dir, named after prefix:
//
//	<prefix>_area_matrix.txt, <prefix>_area_column.txt,
//	<prefix>_area_heatmap.png, <prefix>_area_heatmap.html,
//	the same four for _zoom_ when a zoom scan exists, and <prefix>_manifest.yaml.
//
// It returns the paths written.
func SaveAll(dir, prefix string, snap scan.Snapshot) ([]string, error) {
	if len(snap.Values) == 0 {
		return nil, ErrNothingToSave
	}
	if prefix == "" {
		prefix = snap.ID.String()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	var written []string
	save := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, prefix+name)
		if err := writeFile(path, fn); err != nil {
			return err
		}
		written = append(written, path)
		debug.Verbose("Saved %s", path)
		return nil
	}

	if err := saveSet(save, "_area", "Area scan", snap.Grid, snap.Values); err != nil {
		return written, err
	}
	if z := snap.Zoom; z != nil {
		title := fmt.Sprintf("Zoom scan around point %d", z.TargetIndex)
		if err := saveSet(save, "_zoom", title, z.Grid, z.Values); err != nil {
			return written, err
		}
	}

	names := make([]string, 0, len(written))
	for _, p := range written {
		names = append(names, filepath.Base(p))
	}
	err := save("_manifest.yaml", func(w io.Writer) error {
		return WriteManifest(w, NewManifest(snap, names))
	})
	if err != nil {
		return written, err
	}
	debug.Info("Exported %d files to %s", len(written), dir)
	return written, nil
}

func saveSet(save func(string, func(io.Writer) error) error, kind, title string, grid [][]int, values [][]float64) error {
	steps := []struct {
		suffix string
		fn     func(io.Writer) error
	}{
		{"_matrix.txt", func(w io.Writer) error { return WriteMatrix(w, values) }},
		{"_column.txt", func(w io.Writer) error { return WriteColumn(w, grid, values) }},
		{"_heatmap.png", func(w io.Writer) error { return WriteHeatmapPNG(w, title, values) }},
		{"_heatmap.html", func(w io.Writer) error { return RenderHeatmapHTML(w, title, values) }},
	}
	for _, s := range steps {
		if err := save(kind+s.suffix, s.fn); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("export: %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
