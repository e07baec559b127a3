// Package overlap finds the atlas regions covered by surviving clusters on a
// single cortical hemisphere.
package overlap

import (
	"errors"
	"fmt"
	"sort"

	"ciftiroi/internal/models"
)

// ErrLengthMismatch is returned when the cluster and atlas vectors of a
// hemisphere do not have one entry per vertex each.
var ErrLengthMismatch = errors.New("cluster and atlas vectors differ in length")

// UnknownRegionError reports an atlas code inside a cluster that has no
// entry in the atlas label table. This means the atlas file is corrupt or
// does not belong to the label table it was read with.
type UnknownRegionError struct {
	Code int
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("atlas region code %d has no label", e.Code)
}

// Mask returns a copy of atlas in which every vertex outside a cluster
// (cluster value 0) is set to 0. Vertices inside a cluster keep their atlas
// code, including 0 for unlabeled vertices. The inputs are not modified.
func Mask(cluster, atlas models.VertexVector) (models.VertexVector, error) {
	if len(cluster) != len(atlas) {
		return nil, fmt.Errorf("%w: %d cluster values, %d atlas values",
			ErrLengthMismatch, len(cluster), len(atlas))
	}

	masked := make(models.VertexVector, len(atlas))
	for i, c := range cluster {
		if c != 0 {
			masked[i] = atlas[i]
		}
	}
	return masked, nil
}

// RegionCodes returns the distinct non-zero codes of v in ascending order
func RegionCodes(v models.VertexVector) []int {
	seen := make(map[int]struct{})
	for _, code := range v {
		if code == 0 {
			continue
		}
		seen[code] = struct{}{}
	}

	codes := make([]int, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Extract returns the names of all atlas regions that share at least one
// vertex with a non-zero cluster, ordered by ascending region code.
//
// The background code 0 is never reported. The result is empty (not nil)
// when no cluster touches a labeled region.
func Extract(cluster, atlas models.VertexVector, labels models.LabelDictionary) (models.RegionNameList, error) {
	masked, err := Mask(cluster, atlas)
	if err != nil {
		return nil, err
	}

	codes := RegionCodes(masked)
	names := make(models.RegionNameList, 0, len(codes))
	for _, code := range codes {
		name, ok := labels[code]
		if !ok {
			return nil, &UnknownRegionError{Code: code}
		}
		names = append(names, name)
	}
	return names, nil
}
