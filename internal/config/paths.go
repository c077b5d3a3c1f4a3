package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: dictionary
// sources, captured logs, exported datasets, and logs all live under
// the data directory next to the executable.
type Paths struct {
	ExecutableDir   string
	DataDir         string
	DictionariesDir string
	CapturesDir     string
	ExportsDir      string
	MetadataDir     string
	LogsDir         string
}

// GetPaths returns the application paths relative to the executable
// location, never the current working directory.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths builds the path set rooted at baseDir.
// Directory structure:
//
//	baseDir/
//	  ├── data/
//	  │   ├── dictionaries/  (DBC and YAML signal dictionaries)
//	  │   ├── captures/      (raw CAN log files)
//	  │   ├── exports/       (CSV/Parquet/Excel output)
//	  │   └── metadata/      (signal attribute sidecars)
//	  └── logs/
func NewPaths(baseDir string) *Paths {
	dataDir := filepath.Join(baseDir, "data")
	return &Paths{
		ExecutableDir:   baseDir,
		DataDir:         dataDir,
		DictionariesDir: filepath.Join(dataDir, "dictionaries"),
		CapturesDir:     filepath.Join(dataDir, "captures"),
		ExportsDir:      filepath.Join(dataDir, "exports"),
		MetadataDir:     filepath.Join(dataDir, "metadata"),
		LogsDir:         filepath.Join(baseDir, "logs"),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DictionariesDir,
		p.CapturesDir,
		p.ExportsDir,
		p.MetadataDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetDictionaryPath returns the full path for a dictionary file
func (p *Paths) GetDictionaryPath(filename string) string {
	return filepath.Join(p.DictionariesDir, filename)
}

// GetCapturePath returns the full path for a capture log file
func (p *Paths) GetCapturePath(filename string) string {
	return filepath.Join(p.CapturesDir, filename)
}

// GetExportPath returns the full path for an exported dataset
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetMetadataPath returns the full path for a metadata sidecar
func (p *Paths) GetMetadataPath(filename string) string {
	return filepath.Join(p.MetadataDir, filename)
}

// GetLogPath returns the full path for an application log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}
