package gifti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"ciftiroi/internal/models"
)

// Selector reports whether a data array with the given intent should be
// loaded
type Selector func(intent string) bool

// LabelIntent selects label arrays
func LabelIntent(intent string) bool {
	return intent == IntentLabel
}

// ScalarIntent selects per-vertex scalar arrays. Geometry arrays
// (coordinates, triangles, node indices) and label arrays are skipped.
func ScalarIntent(intent string) bool {
	switch intent {
	case IntentLabel, IntentPointSet, IntentTriangle, IntentNodeIndex:
		return false
	}
	return true
}

// Matrix stacks every array selected by sel as columns of a
// vertices x frames matrix. A single one-dimensional array yields an n x 1
// matrix.
func (img *Image) Matrix(sel Selector) (*mat.Dense, error) {
	var selected []DataArray
	for _, a := range img.Arrays {
		if sel(a.Intent) {
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no data arrays with a matching intent")
	}

	rows := selected[0].Rows()
	totalCols := 0
	for i, a := range selected {
		if a.Rows() != rows {
			return nil, fmt.Errorf("data array %d has %d vertices, expected %d", i, a.Rows(), rows)
		}
		totalCols += a.Cols()
	}
	if rows == 0 || totalCols == 0 {
		return nil, fmt.Errorf("data arrays are empty")
	}

	m := mat.NewDense(rows, totalCols, nil)
	col := 0
	for _, a := range selected {
		cols := a.Cols()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				m.Set(r, col+c, a.Values[r*cols+c])
			}
		}
		col += cols
	}
	return m, nil
}

// LoadData reads the GIFTI file at path and returns the arrays selected by
// sel as a vertices x frames matrix
func LoadData(path string, sel Selector) (*mat.Dense, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	m, err := img.Matrix(sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadLabels reads the label file at path and returns the label array at
// mapIndex (counting only label arrays) as integer region codes, together
// with the file's label table.
func LoadLabels(path string, mapIndex int) (models.VertexVector, models.LabelDictionary, error) {
	img, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	m, err := img.Matrix(LabelIntent)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	_, cols := m.Dims()
	if mapIndex < 0 || mapIndex >= cols {
		return nil, nil, fmt.Errorf("%s: label map %d out of range, file has %d", path, mapIndex, cols)
	}
	codes, err := Column(m, mapIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return codes, img.Labels, nil
}

// Column returns column j of m rounded to integer codes. NaN and infinite
// values have no code and are rejected.
func Column(m mat.Matrix, j int) (models.VertexVector, error) {
	rows, _ := m.Dims()
	v := make(models.VertexVector, rows)
	for i := 0; i < rows; i++ {
		x := m.At(i, j)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("vertex %d has non-finite value %v", i, x)
		}
		v[i] = int(math.Round(x))
	}
	return v, nil
}
