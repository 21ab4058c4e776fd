package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportSummary writes s as JSON into outputDir and returns the file path.
// The name carries the run's finish time, e.g. run_20250101_120000.json.
func ExportSummary(s *Summary, outputDir string, finished time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := filepath.Join(outputDir, "run_"+finished.Format("20060102_150405")+".json")

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run summary: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}

	return filename, nil
}
