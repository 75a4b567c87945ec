package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type YAMLExporter struct{}

func NewYAMLExporter() Exporter {
	return &YAMLExporter{}
}

func (e *YAMLExporter) Export(rows []Row, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report file: %w", err)
	}
	defer file.Close()
	enc := yaml.NewEncoder(file)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]Row{"links": rows}); err != nil {
		return fmt.Errorf("error writing YAML report: %w", err)
	}
	return enc.Close()
}
