// Package aggregate collects the overlapping atlas regions of both cortical
// hemispheres into a single list per statistical map.
package aggregate

import (
	"context"
	"fmt"

	"ciftiroi/internal/models"
	"ciftiroi/pkg/overlap"
)

// HemisphereSource provides the per-hemisphere vectors of combined cluster
// and atlas files
type HemisphereSource interface {
	ClusterVector(ctx context.Context, clusterFile string, h models.Hemisphere) (models.VertexVector, error)
	AtlasVector(ctx context.Context, atlasFile string, h models.Hemisphere) (models.VertexVector, models.LabelDictionary, error)
}

// Recorder receives the vectors of each processed hemisphere
type Recorder interface {
	Record(h models.Hemisphere, cluster, atlas models.VertexVector) error
}

// Aggregator runs the overlap extraction on every hemisphere
type Aggregator struct {
	Source HemisphereSource

	// Recorder is optional
	Recorder Recorder
}

// New returns an Aggregator reading hemispheres from source
func New(source HemisphereSource) *Aggregator {
	return &Aggregator{Source: source}
}

// Aggregate returns the region names overlapping clusters in clusterFile,
// left hemisphere first, then right. A region found on both hemispheres is
// listed twice. Any hemisphere failure fails the whole call.
func (a *Aggregator) Aggregate(ctx context.Context, clusterFile, atlasFile string) (models.RegionNameList, error) {
	rois := models.RegionNameList{}
	for _, h := range models.Hemispheres {
		names, err := a.hemisphere(ctx, clusterFile, atlasFile, h)
		if err != nil {
			return nil, fmt.Errorf("%s hemisphere: %w", h, err)
		}
		rois = append(rois, names...)
	}
	return rois, nil
}

func (a *Aggregator) hemisphere(ctx context.Context, clusterFile, atlasFile string, h models.Hemisphere) (models.RegionNameList, error) {
	atlas, labels, err := a.Source.AtlasVector(ctx, atlasFile, h)
	if err != nil {
		return nil, err
	}

	cluster, err := a.Source.ClusterVector(ctx, clusterFile, h)
	if err != nil {
		return nil, err
	}

	if a.Recorder != nil {
		if err := a.Recorder.Record(h, cluster, atlas); err != nil {
			return nil, fmt.Errorf("failed to record vectors: %w", err)
		}
	}

	return overlap.Extract(cluster, atlas, labels)
}
