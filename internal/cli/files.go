package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func hasYAMLExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// readDocument decodes a YAML or JSON file, chosen by extension.
func readDocument(path string, dest interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if hasYAMLExt(path) {
		if err := yaml.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadSchoolData(path string) (models.SchoolData, error) {
	if path == "" {
		return scheduler.DefaultSchoolData(), nil
	}
	var data models.SchoolData
	if err := readDocument(path, &data); err != nil {
		return models.SchoolData{}, err
	}
	return data, nil
}

func loadGrid(path string) (scheduler.Grid, error) {
	if path == "" {
		return scheduler.DefaultGrid(), nil
	}
	return scheduler.LoadGridFile(path)
}

func loadSchedule(path string) (models.Schedule, error) {
	var schedule models.Schedule
	if err := readDocument(path, &schedule); err != nil {
		return models.Schedule{}, err
	}
	return schedule, nil
}

func writeOutput(w io.Writer, v interface{}, format string) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// openOutput returns stdout unless a path is given.
func openOutput(fallback io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
