package workbench

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"ciftiroi/internal/models"
	"ciftiroi/pkg/gifti"
)

// Client runs surface-processing commands inside a Workspace and decodes
// their per-hemisphere outputs
type Client struct {
	// Binary is the executable to run, DefaultBinary when empty
	Binary string

	// Runner executes the commands
	Runner Runner

	// Workspace provides the intermediate file paths
	Workspace *Workspace

	// ClusterColumn selects the map of the cluster file to read
	ClusterColumn int

	// AtlasMap selects the label map of the atlas file to read
	AtlasMap int

	// Logger may be nil
	Logger *slog.Logger
}

func (c *Client) binary() string {
	if c.Binary == "" {
		return DefaultBinary
	}
	return c.Binary
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// FindClusters detects clusters in the combined statistical map input and
// returns the path of the cluster-membership map. The file lives in the
// workspace; remove it with Workspace.Remove once it has been read.
func (c *Client) FindClusters(ctx context.Context, input, leftSurface, rightSurface string, p ClusterParams) (string, error) {
	output := c.Workspace.Path(".dscalar.nii")
	cmd := FindClusters(c.binary(), input, leftSurface, rightSurface, p, output)

	c.logger().Info("finding clusters", "input", input, "threshold", p.Threshold, "distance", p.Distance)
	if err := run(ctx, c.Runner, cmd); err != nil {
		c.Workspace.Remove(output)
		return "", fmt.Errorf("cluster detection failed: %w", err)
	}
	return output, nil
}

// SeparateMetric extracts hemisphere h of the combined scalar file input
// and returns its data as a vertices x frames matrix
func (c *Client) SeparateMetric(ctx context.Context, input string, h models.Hemisphere) (*mat.Dense, error) {
	output := c.Workspace.Path(".func.gii")
	defer c.Workspace.Remove(output)

	if err := run(ctx, c.Runner, SeparateMetric(c.binary(), input, h, output)); err != nil {
		return nil, fmt.Errorf("failed to separate %s metric: %w", h, err)
	}
	return gifti.LoadData(output, gifti.ScalarIntent)
}

// SeparateLabel extracts hemisphere h of the combined label file input and
// returns the label map at index mapIndex with its label table
func (c *Client) SeparateLabel(ctx context.Context, input string, h models.Hemisphere, mapIndex int) (models.VertexVector, models.LabelDictionary, error) {
	output := c.Workspace.Path(".label.gii")
	defer c.Workspace.Remove(output)

	if err := run(ctx, c.Runner, SeparateLabel(c.binary(), input, h, output)); err != nil {
		return nil, nil, fmt.Errorf("failed to separate %s labels: %w", h, err)
	}
	return gifti.LoadLabels(output, mapIndex)
}

// ClusterVector returns the cluster-membership codes of hemisphere h
func (c *Client) ClusterVector(ctx context.Context, clusterFile string, h models.Hemisphere) (models.VertexVector, error) {
	m, err := c.SeparateMetric(ctx, clusterFile, h)
	if err != nil {
		return nil, err
	}
	if _, cols := m.Dims(); c.ClusterColumn < 0 || c.ClusterColumn >= cols {
		return nil, fmt.Errorf("cluster map %d out of range, %s hemisphere has %d", c.ClusterColumn, h, cols)
	}
	codes, err := gifti.Column(m, c.ClusterColumn)
	if err != nil {
		return nil, fmt.Errorf("%s hemisphere cluster map: %w", h, err)
	}
	return codes, nil
}

// AtlasVector returns the atlas region codes and label table of
// hemisphere h
func (c *Client) AtlasVector(ctx context.Context, atlasFile string, h models.Hemisphere) (models.VertexVector, models.LabelDictionary, error) {
	return c.SeparateLabel(ctx, atlasFile, h, c.AtlasMap)
}

// RemoveClusters deletes a cluster map returned by FindClusters
func (c *Client) RemoveClusters(path string) error {
	return c.Workspace.Remove(path)
}
