package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tanq16/linkcheck/internal/checker"
)

// Row is one checked link as written to a report file.
type Row struct {
	URL             string `csv:"URL" json:"url" yaml:"url"`
	State           string `csv:"State" json:"state" yaml:"state"`
	StatusCode      int    `csv:"Status" json:"status" yaml:"status"`
	ContentType     string `csv:"Content Type" json:"content_type" yaml:"content_type"`
	DeclaredSize    int64  `csv:"Declared Size" json:"declared_size" yaml:"declared_size"`
	BytesDownloaded int64  `csv:"Downloaded" json:"downloaded" yaml:"downloaded"`
	ElapsedMillis   int64  `csv:"Elapsed (ms)" json:"elapsed_ms" yaml:"elapsed_ms"`
}

type Exporter interface {
	// Export writes the rows to the file at path, replacing it
	Export(rows []Row, path string) error
}

func Rows(records []checker.LinkRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			URL:             rec.URL,
			State:           rec.State.String(),
			StatusCode:      rec.StatusCode,
			ContentType:     rec.ContentType,
			DeclaredSize:    rec.DeclaredSize,
			BytesDownloaded: rec.BytesDownloaded,
			ElapsedMillis:   rec.Elapsed.Milliseconds(),
		})
	}
	return rows
}

// ForPath picks the exporter matching the file extension.
func ForPath(path string) (Exporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVExporter(), nil
	case ".json":
		return NewJSONExporter(), nil
	case ".yaml", ".yml":
		return NewYAMLExporter(), nil
	}
	return nil, fmt.Errorf("unsupported report format %q (use .csv, .json, .yaml or .yml)", filepath.Ext(path))
}

// Write exports records to path in the format its extension names.
func Write(records []checker.LinkRecord, path string) error {
	exporter, err := ForPath(path)
	if err != nil {
		return err
	}
	return exporter.Export(Rows(records), path)
}
