// Package gifti decodes GIFTI surface data files (.func.gii, .label.gii)
// into per-vertex arrays and label tables.
//
// Only the subset of the format written by surface-separation tools is
// supported: inline data in ASCII, Base64Binary or GZipBase64Binary
// encoding with UINT8, INT32, FLOAT32 or FLOAT64 elements. Data stored in
// external files is rejected.
package gifti

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ciftiroi/internal/models"
)

// Intent names used by the loader
const (
	IntentLabel     = "NIFTI_INTENT_LABEL"
	IntentNone      = "NIFTI_INTENT_NONE"
	IntentNormal    = "NIFTI_INTENT_NORMAL"
	IntentPointSet  = "NIFTI_INTENT_POINTSET"
	IntentTriangle  = "NIFTI_INTENT_TRIANGLE"
	IntentNodeIndex = "NIFTI_INTENT_NODE_INDEX"
)

// DataArray is one decoded GIFTI data array
type DataArray struct {
	// Intent is the NIFTI intent name, e.g. NIFTI_INTENT_LABEL
	Intent string

	// Dims holds the array dimensions; Dims[0] is the vertex count
	Dims []int

	// Values holds the elements in row-major order
	Values []float64
}

// Rows returns the number of vertices in the array
func (a DataArray) Rows() int {
	if len(a.Dims) == 0 {
		return 0
	}
	return a.Dims[0]
}

// Cols returns the number of values per vertex
func (a DataArray) Cols() int {
	if len(a.Dims) == 0 {
		return 0
	}
	cols := 1
	for _, d := range a.Dims[1:] {
		cols *= d
	}
	return cols
}

// Image is a decoded GIFTI file
type Image struct {
	// Labels is the label table, empty for files without one
	Labels models.LabelDictionary

	// Arrays holds the data arrays in file order
	Arrays []DataArray
}

type xmlGIFTI struct {
	XMLName    xml.Name       `xml:"GIFTI"`
	LabelTable xmlLabelTable  `xml:"LabelTable"`
	DataArrays []xmlDataArray `xml:"DataArray"`
}

type xmlLabelTable struct {
	Labels []xmlLabel `xml:"Label"`
}

type xmlLabel struct {
	Key   string `xml:"Key,attr"`
	Index string `xml:"Index,attr"`
	Name  string `xml:",chardata"`
}

type xmlDataArray struct {
	Intent             string `xml:"Intent,attr"`
	DataType           string `xml:"DataType,attr"`
	ArrayIndexingOrder string `xml:"ArrayIndexingOrder,attr"`
	Dimensionality     int    `xml:"Dimensionality,attr"`
	Dim0               int    `xml:"Dim0,attr"`
	Dim1               int    `xml:"Dim1,attr"`
	Encoding           string `xml:"Encoding,attr"`
	Endian             string `xml:"Endian,attr"`
	ExternalFileName   string `xml:"ExternalFileName,attr"`
	Data               string `xml:"Data"`
}

// Load reads and decodes the GIFTI file at path
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads a GIFTI document from r
func Decode(r io.Reader) (*Image, error) {
	var doc xmlGIFTI
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid GIFTI XML: %w", err)
	}

	labels, err := decodeLabelTable(doc.LabelTable)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Labels: labels,
		Arrays: make([]DataArray, 0, len(doc.DataArrays)),
	}
	for i, da := range doc.DataArrays {
		arr, err := decodeDataArray(da)
		if err != nil {
			return nil, fmt.Errorf("data array %d: %w", i, err)
		}
		img.Arrays = append(img.Arrays, arr)
	}
	return img, nil
}

func decodeLabelTable(table xmlLabelTable) (models.LabelDictionary, error) {
	labels := make(models.LabelDictionary, len(table.Labels))
	for _, l := range table.Labels {
		// Older files carry the code in Index instead of Key
		raw := l.Key
		if raw == "" {
			raw = l.Index
		}
		key, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid label key %q: %w", raw, err)
		}
		if _, dup := labels[key]; dup {
			return nil, fmt.Errorf("duplicate label key %d", key)
		}
		labels[key] = strings.TrimSpace(l.Name)
	}
	return labels, nil
}

func decodeDataArray(da xmlDataArray) (DataArray, error) {
	if da.ExternalFileName != "" || da.Encoding == "ExternalFileBinary" {
		return DataArray{}, fmt.Errorf("external data files are not supported")
	}

	dims, err := arrayDims(da)
	if err != nil {
		return DataArray{}, err
	}
	n := 1
	for _, d := range dims {
		n *= d
	}

	var values []float64
	switch da.Encoding {
	case "ASCII":
		values, err = decodeASCII(da.Data, n)
	case "Base64Binary", "GZipBase64Binary":
		values, err = decodeBinary(da, n)
	default:
		return DataArray{}, fmt.Errorf("unsupported encoding %q", da.Encoding)
	}
	if err != nil {
		return DataArray{}, err
	}

	if da.ArrayIndexingOrder == "ColumnMajorOrder" && len(dims) == 2 {
		values = transpose(values, dims[0], dims[1])
	}

	return DataArray{
		Intent: da.Intent,
		Dims:   dims,
		Values: values,
	}, nil
}

func arrayDims(da xmlDataArray) ([]int, error) {
	switch da.Dimensionality {
	case 1:
		if da.Dim0 < 0 {
			return nil, fmt.Errorf("invalid Dim0 %d", da.Dim0)
		}
		return []int{da.Dim0}, nil
	case 2:
		if da.Dim0 < 0 || da.Dim1 < 0 {
			return nil, fmt.Errorf("invalid dimensions %dx%d", da.Dim0, da.Dim1)
		}
		return []int{da.Dim0, da.Dim1}, nil
	}
	return nil, fmt.Errorf("unsupported dimensionality %d", da.Dimensionality)
}

func decodeASCII(data string, n int) ([]float64, error) {
	fields := strings.Fields(data)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d values, found %d", n, len(fields))
	}

	values := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", f, err)
		}
		values[i] = v
	}
	return values, nil
}

func decodeBinary(da xmlDataArray, n int) ([]float64, error) {
	// Base64 payloads are often wrapped across lines
	payload := strings.Join(strings.Fields(da.Data), "")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	if da.Encoding == "GZipBase64Binary" {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid compressed data: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("invalid compressed data: %w", err)
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	if da.Endian == "BigEndian" {
		order = binary.BigEndian
	}

	size, err := elementSize(da.DataType)
	if err != nil {
		return nil, err
	}
	if len(raw) != n*size {
		return nil, fmt.Errorf("expected %d bytes of %s data, found %d", n*size, da.DataType, len(raw))
	}

	values := make([]float64, n)
	for i := range values {
		b := raw[i*size : (i+1)*size]
		switch da.DataType {
		case "NIFTI_TYPE_UINT8":
			values[i] = float64(b[0])
		case "NIFTI_TYPE_INT32":
			values[i] = float64(int32(order.Uint32(b)))
		case "NIFTI_TYPE_FLOAT32":
			values[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "NIFTI_TYPE_FLOAT64":
			values[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return values, nil
}

func elementSize(dataType string) (int, error) {
	switch dataType {
	case "NIFTI_TYPE_UINT8":
		return 1, nil
	case "NIFTI_TYPE_INT32", "NIFTI_TYPE_FLOAT32":
		return 4, nil
	case "NIFTI_TYPE_FLOAT64":
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported data type %q", dataType)
}

// transpose converts column-major values of a rows x cols array to
// row-major order
func transpose(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = values[c*rows+r]
		}
	}
	return out
}
