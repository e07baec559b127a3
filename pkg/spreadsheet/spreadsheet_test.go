package spreadsheet

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ciftiroi/internal/models"
)

func readTable(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return records
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		legacy string
	}{
		{"results.txt", "results.csv", "results.csv"},
		{"scores.tsv", "scores.csv", "scores.csv"},
		{"out.csv", "out.csv", "out.csv"},
		{"out.json", "out.json", "out.json"},
		{"out", "out", "out"},
		{"dir/sub/table.txt", "dir/sub/table.csv", "dir/sub/table.csv"},
		{"RESULTS.TXT", "RESULTS.TXT", "RESULTS.TXT"},
		{"my.txtfile.json", "my.txtfile.json", "my.txtfile.csv"},
		{"runs.csv.bak", "runs.csv.bak", "runs.csv.csv"},
		{".csv", ".csv", ".csv.csv"},
		{"dir/.txt", "dir/.txt", "dir/.txt.csv"},
		{"dir/..tsv", "dir/..tsv", "dir/..tsv.csv"},
		{"dir/.hidden.txt", "dir/.hidden.csv", "dir/.hidden.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := (Writer{}).NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
			legacy := Writer{LegacyExtensionMatch: true}
			if got := legacy.NormalizePath(tt.path); got != tt.legacy {
				t.Errorf("legacy NormalizePath(%q) = %q, want %q", tt.path, got, tt.legacy)
			}
		})
	}
}

func TestFormatROIs(t *testing.T) {
	tests := []struct {
		names models.RegionNameList
		want  string
	}{
		{models.RegionNameList{"V1", "MT", "S1"}, "['V1', 'MT', 'S1']"},
		{models.RegionNameList{"L_V1_ROI"}, "['L_V1_ROI']"},
		{models.RegionNameList{}, "[]"},
		{models.RegionNameList{"Broca's area"}, `["Broca's area"]`},
		{models.RegionNameList{`it's "odd"`}, `['it\'s "odd"']`},
		{models.RegionNameList{`a\b`}, `['a\\b']`},
	}

	for _, tt := range tests {
		if got := FormatROIs(tt.names); got != tt.want {
			t.Errorf("FormatROIs(%q) = %s, want %s", tt.names, got, tt.want)
		}
	}
}

func TestWriteCreatesTable(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "results.txt")
	source := filepath.Join(dir, "stats.dscalar.nii")

	got, err := Write(source, output, models.RegionNameList{"V1", "MT", "S1"})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if want := filepath.Join(dir, "results.csv"); got != want {
		t.Errorf("Write returned %q, want %q", got, want)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("un-normalized path %s was created", output)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("Failed to read table: %v", err)
	}
	want := "File,ROIs\n" + source + ",\"['V1', 'MT', 'S1']\"\n"
	if string(data) != want {
		t.Errorf("table contents:\n%s\nwant:\n%s", data, want)
	}
}

func TestWriteAppendsWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "results.csv")
	source := filepath.Join(dir, "stats.dscalar.nii")

	for i := 0; i < 2; i++ {
		if _, err := Write(source, output, models.RegionNameList{"V1"}); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if _, err := Write(source, output, models.RegionNameList{"MT", "MT"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := [][]string{
		{"File", "ROIs"},
		{source, "['V1']"},
		{source, "['V1']"},
		{source, "['MT', 'MT']"},
	}
	if got := readTable(t, output); !reflect.DeepEqual(got, want) {
		t.Errorf("table = %v, want %v", got, want)
	}
}

func TestWriteKeepsExistingRows(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "results.csv")
	existing := "File,ROIs\n/old/image.dscalar.nii,['S1']\n"
	if err := os.WriteFile(output, []byte(existing), 0644); err != nil {
		t.Fatalf("Failed to seed table: %v", err)
	}

	source := filepath.Join(dir, "new.dscalar.nii")
	if _, err := Write(source, output, models.RegionNameList{"V1"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read table: %v", err)
	}
	if want := existing + source + ",['V1']\n"; string(data) != want {
		t.Errorf("table contents:\n%s\nwant:\n%s", data, want)
	}
}

func TestWriteResolvesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "results.csv")

	if _, err := Write("relative/stats.dscalar.nii", output, models.RegionNameList{"V1"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	records := readTable(t, output)
	if want := filepath.Join(wd, "relative", "stats.dscalar.nii"); records[1][0] != want {
		t.Errorf("File = %q, want %q", records[1][0], want)
	}
}

func TestWriteUnwritableDirectory(t *testing.T) {
	output := filepath.Join(t.TempDir(), "missing", "results.csv")
	if _, err := Write("stats.dscalar.nii", output, models.RegionNameList{"V1"}); err == nil {
		t.Error("expected an error for a missing output directory")
	}
}

// readOnlyOpen opens files without write access so that row writes fail
func readOnlyOpen(t *testing.T) {
	t.Cleanup(func() { openFile = os.OpenFile })
	openFile = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		return os.OpenFile(name, flag&^os.O_WRONLY, perm)
	}
}

func TestWriteFailureRemovesNewTable(t *testing.T) {
	readOnlyOpen(t)
	output := filepath.Join(t.TempDir(), "results.csv")

	if _, err := Write("stats.dscalar.nii", output, models.RegionNameList{"V1"}); err == nil {
		t.Fatal("expected a write error")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("table %s left behind after a failed write: %v", output, err)
	}
}

func TestWriteFailureKeepsExistingTable(t *testing.T) {
	output := filepath.Join(t.TempDir(), "results.csv")
	existing := "File,ROIs\n/old/image.dscalar.nii,['S1']\n"
	if err := os.WriteFile(output, []byte(existing), 0644); err != nil {
		t.Fatalf("Failed to seed table: %v", err)
	}
	readOnlyOpen(t)

	if _, err := Write("stats.dscalar.nii", output, models.RegionNameList{"V1"}); err == nil {
		t.Fatal("expected a write error")
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("existing table was removed: %v", err)
	}
	if string(data) != existing {
		t.Errorf("table contents:\n%s\nwant:\n%s", data, existing)
	}
}
