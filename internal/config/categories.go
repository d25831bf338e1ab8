package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"metas/internal/core"
)

// categoriesFile is the on-disk shape of a category table:
//
//	[[categories]]
//	name = "Sites"
//	target = 5
type categoriesFile struct {
	Categories []core.Category `json:"categories" yaml:"categories" toml:"categories"`
}

// LoadCategories reads a TOML, YAML or JSON category table. An empty path
// returns the stock table.
func LoadCategories(path string) (core.CategoryDefaults, error) {
	if path == "" {
		return core.DefaultCategories(), nil
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing categories file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	var file categoriesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(fileData, &file); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(fileData, &file); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(fileData, &file); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported categories file format: %s", filepath.Ext(path))
	}

	defaults := core.CategoryDefaults(file.Categories)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid categories file %s: %w", path, err)
	}
	return defaults, nil
}
