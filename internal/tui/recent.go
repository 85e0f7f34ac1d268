package tui

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/rendis/gridrank/internal/config"
	"github.com/rendis/gridrank/internal/tui/views"
)

func lastScanPath() string {
	return filepath.Join(config.DataDir(), "last_scan.json")
}

// LoadLastScan returns the form values of the previous scan, or the zero value.
func LoadLastScan(path string) views.FormValues {
	var v views.FormValues
	data, err := os.ReadFile(path)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return views.FormValues{}
	}
	return v
}

// SaveLastScan stores the form values used to start a scan.
func SaveLastScan(path string, v views.FormValues) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "tui: marshal last scan")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "tui: create state dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "tui: write last scan")
	}
	return nil
}
