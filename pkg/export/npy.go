// Package export saves the per-hemisphere vectors of a run as NumPy .npy
// files so intermediate results can be inspected outside the tool.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kshedden/gonpy"

	"ciftiroi/internal/models"
	"ciftiroi/pkg/overlap"
)

// NpyRecorder writes the cluster, atlas and masked atlas vectors of each
// hemisphere to Dir as <hemisphere>_<kind>.npy
type NpyRecorder struct {
	Dir string
}

// NewNpyRecorder creates dir and returns a recorder writing into it
func NewNpyRecorder(dir string) (*NpyRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create intermediary directory: %w", err)
	}
	return &NpyRecorder{Dir: dir}, nil
}

// Record writes the vectors of hemisphere h. The masked atlas is skipped
// when the vectors differ in length; the overlap step reports that error.
func (r *NpyRecorder) Record(h models.Hemisphere, cluster, atlas models.VertexVector) error {
	if err := r.write(h, "cluster", cluster); err != nil {
		return err
	}
	if err := r.write(h, "atlas", atlas); err != nil {
		return err
	}

	masked, err := overlap.Mask(cluster, atlas)
	if err != nil {
		return nil
	}
	return r.write(h, "masked", masked)
}

// Path returns the file written for hemisphere h and the given kind
func (r *NpyRecorder) Path(h models.Hemisphere, kind string) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%s.npy", h, kind))
}

func (r *NpyRecorder) write(h models.Hemisphere, kind string, v models.VertexVector) error {
	path := r.Path(h, kind)
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	data := make([]float64, len(v))
	for i, x := range v {
		data[i] = float64(x)
	}
	w.Shape = []int{len(v)}
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
