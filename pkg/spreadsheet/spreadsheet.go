// Package spreadsheet appends per-image region lists to a CSV result table.
//
// The table has two columns, File and ROIs. Rows are only ever appended:
// existing rows are never read or rewritten, and writing the same image
// twice produces two rows. Writers to the same file are not synchronized.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ciftiroi/internal/models"
)

// Header is the first line of a newly created table
var Header = []string{"File", "ROIs"}

// tableExtensions are rewritten to .csv
var tableExtensions = []string{".csv", ".tsv", ".txt"}

// openFile is replaced in tests
var openFile = os.OpenFile

// Writer appends result rows to a table file
type Writer struct {
	// LegacyExtensionMatch rewrites the extension of any path that contains
	// .csv, .tsv or .txt anywhere, not only as its extension. For example
	// my.txtfile.json becomes my.txtfile.csv.
	LegacyExtensionMatch bool
}

// NormalizePath returns the table path for output: a .csv, .tsv or .txt
// extension is replaced with .csv, anything else is left unchanged. A file
// name made of a leading dot and a suffix, such as .csv, has no extension.
func (w Writer) NormalizePath(output string) string {
	ext := extension(output)
	for _, te := range tableExtensions {
		matched := ext == te
		if w.LegacyExtensionMatch {
			matched = strings.Contains(output, te)
		}
		if matched {
			return strings.TrimSuffix(output, ext) + ".csv"
		}
	}
	return output
}

// extension returns the extension of path. Leading dots of the file name
// do not start an extension.
func extension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	if name := strings.TrimLeft(filepath.Base(path), "."); !strings.Contains(name, ".") {
		return ""
	}
	return ext
}

// Write appends one row for the image at source to the table at output and
// returns the normalized table path. The table and its header line are
// created if the file does not exist yet.
func (w Writer) Write(source, output string, rois models.RegionNameList) (string, error) {
	output = w.NormalizePath(output)

	file, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", source, err)
	}
	row := models.ResultRow{File: file, ROIs: rois}

	created := true
	f, err := openFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		created = false
		f, err = openFile(output, os.O_WRONLY|os.O_APPEND, 0644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", output, err)
	}

	cw := csv.NewWriter(f)
	if created {
		cw.Write(Header)
	}
	cw.Write(Record(row))
	cw.Flush()

	err = cw.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if created {
			os.Remove(output)
		}
		return "", fmt.Errorf("failed to write %s: %w", output, err)
	}
	return output, nil
}

// Write appends a row using the default Writer
func Write(source, output string, rois models.RegionNameList) (string, error) {
	return Writer{}.Write(source, output, rois)
}

// Record returns the CSV fields of row. The whole region list is a single
// field.
func Record(row models.ResultRow) []string {
	return []string{row.File, FormatROIs(row.ROIs)}
}

// FormatROIs renders names as one bracketed list, e.g. ['V1', 'MT']
func FormatROIs(names models.RegionNameList) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(name)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// quote wraps s in single quotes, or double quotes when s holds a single
// quote but no double quote
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == q {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte(q)
	return b.String()
}
