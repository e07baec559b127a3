package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ciftiroi/internal/models"
	"ciftiroi/pkg/workbench"
)

// surfaceRunner stands in for the surface-processing command. It writes a
// placeholder cluster map and serves per-hemisphere GIFTI files.
type surfaceRunner struct {
	clusters map[string][]int // keyed by structure
	atlas    map[string][]int
	labels   string
	commands []workbench.Command
}

func (r *surfaceRunner) Run(ctx context.Context, cmd workbench.Command) error {
	r.commands = append(r.commands, cmd)

	switch cmd.Args[0] {
	case "-cifti-find-clusters":
		return os.WriteFile(cmd.Output, []byte("clusters"), 0644)
	case "-cifti-separate":
		mode, structure := cmd.Args[3], cmd.Args[4]
		var doc string
		if mode == "-metric" {
			doc = giftiDoc("", "NIFTI_INTENT_NONE", "NIFTI_TYPE_FLOAT32", r.clusters[structure])
		} else {
			doc = giftiDoc(r.labels, "NIFTI_INTENT_LABEL", "NIFTI_TYPE_INT32", r.atlas[structure])
		}
		return os.WriteFile(cmd.Output, []byte(doc), 0644)
	}
	return fmt.Errorf("unexpected command %s", cmd)
}

func giftiDoc(labelTable, intent, dataType string, values []int) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf(`<GIFTI Version="1.0" NumberOfDataArrays="1">%s
<DataArray Intent="%s" DataType="%s" ArrayIndexingOrder="RowMajorOrder" Dimensionality="1" Dim0="%d"
Encoding="ASCII" Endian="LittleEndian"><Data>%s</Data></DataArray></GIFTI>`,
		labelTable, intent, dataType, len(values), strings.Join(fields, " "))
}

const labelTable = `<LabelTable>
<Label Key="0"><![CDATA[???]]></Label>
<Label Key="5"><![CDATA[V1]]></Label>
<Label Key="7"><![CDATA[MT]]></Label>
<Label Key="9"><![CDATA[S1]]></Label>
</LabelTable>`

func newClient(t *testing.T, r workbench.Runner) *workbench.Client {
	ws, err := workbench.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create workspace: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return &workbench.Client{Runner: r, Workspace: ws}
}

func testParams(dir string) *Params {
	return &Params{
		InputFile:    filepath.Join(dir, "stats.dscalar.nii"),
		AtlasFile:    filepath.Join(dir, "atlas.dlabel.nii"),
		OutputFile:   filepath.Join(dir, "results.txt"),
		LeftSurface:  filepath.Join(dir, "L.midthickness.surf.gii"),
		RightSurface: filepath.Join(dir, "R.midthickness.surf.gii"),
		Threshold:    1.77,
		Distance:     20,
	}
}

func TestProcessWritesRow(t *testing.T) {
	dir := t.TempDir()
	r := &surfaceRunner{
		clusters: map[string][]int{
			"CORTEX_LEFT":  {0, 1, 1, 0, 2},
			"CORTEX_RIGHT": {0, 0, 3},
		},
		atlas: map[string][]int{
			"CORTEX_LEFT":  {5, 5, 7, 7, 9},
			"CORTEX_RIGHT": {5, 7, 5},
		},
		labels: labelTable,
	}
	client := newClient(t, r)
	params := testParams(dir)

	result, err := NewPipeline(params, client, client, nil).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := models.RegionNameList{"V1", "MT", "S1", "V1"}
	if !reflect.DeepEqual(result.ROIs, want) {
		t.Errorf("ROIs = %v, want %v", result.ROIs, want)
	}
	if !result.Written {
		t.Error("row not written")
	}
	if wantOut := filepath.Join(dir, "results.csv"); result.OutputFile != wantOut {
		t.Errorf("OutputFile = %q, want %q", result.OutputFile, wantOut)
	}

	data, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatalf("Failed to read table: %v", err)
	}
	wantTable := "File,ROIs\n" + params.InputFile + ",\"['V1', 'MT', 'S1', 'V1']\"\n"
	if string(data) != wantTable {
		t.Errorf("table contents:\n%s\nwant:\n%s", data, wantTable)
	}

	// find clusters, then atlas and cluster separation per hemisphere
	if len(r.commands) != 5 {
		t.Fatalf("ran %d commands, want 5", len(r.commands))
	}
	if got := r.commands[0].Args[2:6]; !reflect.DeepEqual(got, []string{"1.77", "20", "1.77", "20"}) {
		t.Errorf("cluster arguments = %v", got)
	}

	entries, err := os.ReadDir(client.Workspace.Dir())
	if err != nil {
		t.Fatalf("Failed to read workspace: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d intermediate files left behind", len(entries))
	}
}

func TestProcessNoOverlapLeavesTableUntouched(t *testing.T) {
	dir := t.TempDir()
	r := &surfaceRunner{
		clusters: map[string][]int{"CORTEX_LEFT": {0, 0}, "CORTEX_RIGHT": {0, 0}},
		atlas:    map[string][]int{"CORTEX_LEFT": {5, 7}, "CORTEX_RIGHT": {9, 9}},
		labels:   labelTable,
	}
	client := newClient(t, r)
	params := testParams(dir)

	result, err := NewPipeline(params, client, client, nil).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Written || len(result.ROIs) != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.OutputFile != params.OutputFile {
		t.Errorf("OutputFile = %q, want the requested path", result.OutputFile)
	}
	for _, name := range []string{"results.txt", "results.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s was created", name)
		}
	}
}

func TestProcessUnknownRegionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := &surfaceRunner{
		clusters: map[string][]int{"CORTEX_LEFT": {1, 1}, "CORTEX_RIGHT": {1}},
		atlas:    map[string][]int{"CORTEX_LEFT": {5, 7}, "CORTEX_RIGHT": {42}},
		labels:   labelTable,
	}
	client := newClient(t, r)
	params := testParams(dir)

	if _, err := NewPipeline(params, client, client, nil).Process(context.Background()); err == nil {
		t.Fatal("expected an error for an unlabeled region code")
	}
	if _, err := os.Stat(filepath.Join(dir, "results.csv")); !os.IsNotExist(err) {
		t.Error("partial results were written")
	}
}

type failingFinder struct {
	err error
}

func (f failingFinder) FindClusters(ctx context.Context, input, left, right string, p workbench.ClusterParams) (string, error) {
	return "", f.err
}

func (f failingFinder) RemoveClusters(path string) error { return nil }

func TestProcessClusterFailure(t *testing.T) {
	boom := errors.New("cluster detection failed")
	params := testParams(t.TempDir())

	_, err := NewPipeline(params, failingFinder{err: boom}, nil, nil).Process(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected cluster failure, got %v", err)
	}
}

func TestProcessSavesIntermediaryResults(t *testing.T) {
	dir := t.TempDir()
	r := &surfaceRunner{
		clusters: map[string][]int{"CORTEX_LEFT": {1, 0}, "CORTEX_RIGHT": {0, 1}},
		atlas:    map[string][]int{"CORTEX_LEFT": {5, 7}, "CORTEX_RIGHT": {9, 9}},
		labels:   labelTable,
	}
	client := newClient(t, r)
	params := testParams(dir)
	params.SaveIntermediaryResults = true
	params.IntermediaryDir = filepath.Join(dir, "intermediary")

	if _, err := NewPipeline(params, client, client, nil).Process(context.Background()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, name := range []string{"left_cluster.npy", "left_atlas.npy", "left_masked.npy", "right_masked.npy"} {
		path := filepath.Join(dir, "intermediary", "stats", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestImageName(t *testing.T) {
	tests := map[string]string{
		"/data/stats.dscalar.nii": "stats",
		"stats":                   "stats",
		"/data/.hidden.nii":       ".hidden.nii",
	}
	for in, want := range tests {
		if got := imageName(in); got != want {
			t.Errorf("imageName(%q) = %q, want %q", in, got, want)
		}
	}
}
