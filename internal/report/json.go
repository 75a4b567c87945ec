package report

import (
	"encoding/json"
	"fmt"
	"os"
)

type JSONExporter struct{}

func NewJSONExporter() Exporter {
	return &JSONExporter{}
}

func (e *JSONExporter) Export(rows []Row, path string) error {
	data, err := json.MarshalIndent(rows, "", "    ")
	if err != nil {
		return fmt.Errorf("error marshalling report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing JSON report: %w", err)
	}
	return nil
}
