package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ciftiroi/internal/models"
	"ciftiroi/pkg/aggregate"
	"ciftiroi/pkg/export"
	"ciftiroi/pkg/spreadsheet"
	"ciftiroi/pkg/workbench"
)

// ClusterFinder detects clusters in a combined statistical map
type ClusterFinder interface {
	FindClusters(ctx context.Context, input, leftSurface, rightSurface string, p workbench.ClusterParams) (string, error)
	RemoveClusters(path string) error
}

// Params holds the inputs of one run
type Params struct {
	// InputFile is the combined statistical map (.dscalar.nii)
	InputFile string

	// AtlasFile is the combined atlas (.dlabel.nii)
	AtlasFile string

	// OutputFile is the result table; .tsv/.txt are rewritten to .csv
	OutputFile string

	// LeftSurface and RightSurface are the surface meshes used for
	// distance computation during cluster detection
	LeftSurface  string
	RightSurface string

	// Threshold and Distance control cluster detection
	Threshold float64
	Distance  float64

	// LegacyExtensionMatch selects substring matching of table extensions
	LegacyExtensionMatch bool

	// SaveIntermediaryResults writes per-hemisphere vectors to
	// IntermediaryDir/<input name>/ as .npy files
	SaveIntermediaryResults bool
	IntermediaryDir         string
}

// Result describes the outcome of a run
type Result struct {
	// OutputFile is the table that was written, or the requested output
	// path when nothing was written
	OutputFile string

	// ROIs holds the region names of both hemispheres, left first
	ROIs models.RegionNameList

	// Written reports whether a row was appended to the table
	Written bool
}

// Pipeline maps the surviving clusters of a statistical map to atlas
// region names and records them in the result table.
//
// The run consists of:
// 1. Detecting clusters in the combined statistical map
// 2. Collecting the overlapping atlas regions of both hemispheres
// 3. Appending a row to the result table if any region was found
type Pipeline struct {
	params *Params
	finder ClusterFinder
	source aggregate.HemisphereSource
	logger *slog.Logger
}

// NewPipeline creates a pipeline for params. finder and source are usually
// the same *workbench.Client.
func NewPipeline(params *Params, finder ClusterFinder, source aggregate.HemisphereSource, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		params: params,
		finder: finder,
		source: source,
		logger: logger,
	}
}

// Process runs the complete pipeline
func (p *Pipeline) Process(ctx context.Context) (*Result, error) {
	result := &Result{OutputFile: p.params.OutputFile}

	// Step 1: Find clusters
	p.logger.Info("Step 1: finding clusters", "input", p.params.InputFile)
	clusters, err := p.finder.FindClusters(ctx, p.params.InputFile, p.params.LeftSurface, p.params.RightSurface,
		workbench.ClusterParams{Threshold: p.params.Threshold, Distance: p.params.Distance})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.finder.RemoveClusters(clusters); err != nil {
			p.logger.Warn("failed to remove cluster map", "path", clusters, "error", err)
		}
	}()

	// Step 2: Collect overlapping regions per hemisphere
	p.logger.Info("Step 2: collecting overlapping regions", "atlas", p.params.AtlasFile)
	agg := aggregate.New(p.source)
	if p.params.SaveIntermediaryResults {
		dir := filepath.Join(p.params.IntermediaryDir, imageName(p.params.InputFile))
		rec, err := export.NewNpyRecorder(dir)
		if err != nil {
			return nil, err
		}
		agg.Recorder = rec
		p.logger.Info("saving intermediary results", "dir", dir)
	}

	rois, err := agg.Aggregate(ctx, clusters, p.params.AtlasFile)
	if err != nil {
		return nil, fmt.Errorf("failed to collect regions for %s: %w", p.params.InputFile, err)
	}
	result.ROIs = rois
	p.logger.Info("regions found", "count", len(rois))

	// Step 3: Record the regions
	if len(rois) == 0 {
		p.logger.Info("Step 3: no cluster overlaps an atlas region, table left unchanged")
		return result, nil
	}

	p.logger.Info("Step 3: writing result table", "output", p.params.OutputFile)
	w := spreadsheet.Writer{LegacyExtensionMatch: p.params.LegacyExtensionMatch}
	out, err := w.Write(p.params.InputFile, p.params.OutputFile, rois)
	if err != nil {
		return nil, err
	}
	result.OutputFile = out
	result.Written = true

	return result, nil
}

// imageName returns the file name of path without any extensions, e.g.
// stats for /data/stats.dscalar.nii
func imageName(path string) string {
	name, _, _ := strings.Cut(filepath.Base(path), ".")
	if name == "" {
		return filepath.Base(path)
	}
	return name
}
