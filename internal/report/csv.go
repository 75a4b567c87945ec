package report

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

type CSVExporter struct{}

func NewCSVExporter() Exporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Export(rows []Row, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report file: %w", err)
	}
	defer file.Close()
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("error writing CSV report: %w", err)
	}
	return nil
}
