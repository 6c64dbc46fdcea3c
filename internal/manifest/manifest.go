// Package manifest loads the package manifest: the embedding model id,
// named source roots to scan, and exclusion globs, per §6.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the parsed contents of package.json/.yaml/.yml.
type Manifest struct {
	Embedding string            `json:"embedding" yaml:"embedding"`
	Sources   map[string]string `json:"sources" yaml:"sources"`
	Excludes  []string          `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

var candidateNames = []string{"package.json", "package.yaml", "package.yml"}

// Load resolves packagePath to a manifest file (if packagePath is a
// directory, the first of package.json/package.yaml/package.yml found
// inside it) and parses it. It returns the manifest and the directory the
// manifest file lives in, which is where the "workspace" subdirectory is
// created.
func Load(packagePath string) (*Manifest, string, error) {
	abs, err := filepath.Abs(packagePath)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", err
	}

	filePath := abs
	if info.IsDir() {
		found := ""
		for _, name := range candidateNames {
			candidate := filepath.Join(abs, name)
			if _, err := os.Stat(candidate); err == nil {
				found = candidate
				break
			}
		}
		if found == "" {
			return nil, "", fmt.Errorf("manifest: no package.json/.yaml/.yml found in %s", abs)
		}
		filePath = found
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", err
	}

	var m Manifest
	switch filepath.Ext(filePath) {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, "", fmt.Errorf("manifest: parse %s: %w", filePath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, "", fmt.Errorf("manifest: parse %s: %w", filePath, err)
		}
	default:
		return nil, "", fmt.Errorf("manifest: unsupported file type %s", filePath)
	}
	if m.Embedding == "" {
		return nil, "", fmt.Errorf("manifest: %s missing required \"embedding\" field", filePath)
	}
	return &m, filepath.Dir(filePath), nil
}
