// Package workbench wraps the external surface-processing command used to
// detect clusters and to split combined CIFTI files into per-hemisphere
// GIFTI files.
package workbench

import (
	"strconv"
	"strings"

	"ciftiroi/internal/models"
)

// DefaultBinary is the name of the surface-processing executable
const DefaultBinary = "wb_command"

// Command is a fully built external command. It is a plain value; the
// builder functions below never share state between calls.
type Command struct {
	// Name is the executable to run
	Name string

	// Args holds the arguments, not including Name
	Args []string

	// Output is the file the command is expected to create
	Output string
}

// String renders the command line for logs and error messages
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ClusterParams controls cluster detection. The same values are applied to
// surface and volume data.
type ClusterParams struct {
	// Threshold is the minimum statistic value for a vertex to join a cluster
	Threshold float64

	// Distance is the minimum cluster size, also used as the merge distance
	Distance float64
}

// FindClusters builds the command that detects clusters in the combined
// statistical map input and writes a cluster-membership map to output.
func FindClusters(binary, input, leftSurface, rightSurface string, p ClusterParams, output string) Command {
	thresh := formatNumber(p.Threshold)
	dist := formatNumber(p.Distance)
	return Command{
		Name: binary,
		Args: []string{
			"-cifti-find-clusters",
			input,
			thresh, dist,
			thresh, dist,
			"COLUMN",
			output,
			"-left-surface", leftSurface,
			"-right-surface", rightSurface,
		},
		Output: output,
	}
}

// SeparateMetric builds the command that extracts one hemisphere of a
// combined scalar file as a metric GIFTI file.
func SeparateMetric(binary, input string, h models.Hemisphere, output string) Command {
	return separate(binary, input, "-metric", h, output)
}

// SeparateLabel builds the command that extracts one hemisphere of a
// combined label file as a label GIFTI file.
func SeparateLabel(binary, input string, h models.Hemisphere, output string) Command {
	return separate(binary, input, "-label", h, output)
}

func separate(binary, input, mode string, h models.Hemisphere, output string) Command {
	return Command{
		Name: binary,
		Args: []string{
			"-cifti-separate",
			input,
			"COLUMN",
			mode, h.Structure(),
			output,
		},
		Output: output,
	}
}

// formatNumber renders v in its shortest decimal form (1.77, 20)
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
