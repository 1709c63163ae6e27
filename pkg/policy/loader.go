package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a policy file at an explicit path. Malformed YAML
// returns a *ParseError.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewParseError(path, err)
	}

	return &doc, nil
}

// Locate searches the standard locations for a policy file named after the
// tool and loads the first that exists:
//
//	./<tool>.yaml
//	./<tool>.yml
//	~/.<tool>.yaml
//	<user config dir>/<tool>/config.yaml
//
// When no file exists anywhere, it returns the fully permissive zero-value
// document and an empty path; that is not an error.
func Locate(tool string) (*Document, string, error) {
	candidates := []string{
		fmt.Sprintf("./%s.yaml", tool),
		fmt.Sprintf("./%s.yml", tool),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "."+tool+".yaml"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(cfg, tool, "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := Load(path)
		if err != nil {
			return nil, path, err
		}
		return doc, path, nil
	}

	return &Document{}, "", nil
}
