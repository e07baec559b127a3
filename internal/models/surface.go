package models

import "fmt"

// Hemisphere identifies one cortical surface.
type Hemisphere int

const (
	Left Hemisphere = iota
	Right
)

// Hemispheres lists both hemispheres in processing order.
var Hemispheres = []Hemisphere{Left, Right}

// String returns the short lowercase name used in file names and logs
func (h Hemisphere) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("hemisphere(%d)", int(h))
}

// Structure returns the brain structure name understood by the
// surface-processing command (e.g. CORTEX_LEFT).
func (h Hemisphere) Structure() string {
	switch h {
	case Left:
		return "CORTEX_LEFT"
	case Right:
		return "CORTEX_RIGHT"
	}
	return ""
}

// VertexVector holds one integer code per surface vertex of a single
// hemisphere.
//
// As a cluster vector, 0 means the vertex is not part of any surviving
// cluster. As an atlas vector, each value is a region code and 0 is the
// unlabeled background.
type VertexVector []int

// LabelDictionary maps an atlas region code to its region name
type LabelDictionary map[int]string

// RegionNameList is an ordered list of region names
type RegionNameList []string

// ResultRow is one row of the result spreadsheet
type ResultRow struct {
	// File is the absolute path of the statistical map
	File string

	// ROIs holds the region names overlapping any surviving cluster,
	// left hemisphere first
	ROIs RegionNameList
}
