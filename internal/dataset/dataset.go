// Package dataset loads the static residence list.
package dataset

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/residence-finder/internal/model"
)

//go:embed residences.yaml
var defaultData []byte

// file is the on-disk layout: a top-level "residences" list.
type file struct {
	Residences []model.Residence `yaml:"residences" json:"residences"`
}

// Default returns the embedded dataset.
func Default() ([]model.Residence, error) {
	return Parse(defaultData, "yaml")
}

// Load reads residences from path. An empty path yields the embedded dataset.
// Files ending in .json are decoded as JSON, anything else as YAML.
func Load(path string) ([]model.Residence, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	residences, err := Parse(data, format)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", path)
	}
	zap.L().Info("dataset loaded", zap.String("path", path), zap.Int("residences", len(residences)))
	return residences, nil
}

// Parse decodes and validates a dataset in the given format ("yaml" or "json").
func Parse(data []byte, format string) ([]model.Residence, error) {
	var f file
	switch format {
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "dataset: parse json")
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "dataset: parse yaml")
		}
	default:
		return nil, eris.Errorf("dataset: unsupported format %q", format)
	}
	if err := Validate(f.Residences); err != nil {
		return nil, err
	}
	return f.Residences, nil
}

// Validate checks that every residence has a unique non-empty name and valid coordinates.
func Validate(residences []model.Residence) error {
	seen := make(map[string]int, len(residences))
	for i, r := range residences {
		if strings.TrimSpace(r.Name) == "" {
			return eris.Errorf("dataset: residence %d has no name", i)
		}
		if j, dup := seen[r.Name]; dup {
			return eris.Errorf("dataset: duplicate name %q at %d and %d", r.Name, j, i)
		}
		seen[r.Name] = i
		if !r.Coords.Valid() {
			return eris.Errorf("dataset: residence %q has invalid coords %v", r.Name, r.Coords)
		}
	}
	return nil
}

// Find returns the residence named name.
func Find(residences []model.Residence, name string) (model.Residence, bool) {
	for _, r := range residences {
		if r.Name == name {
			return r, true
		}
	}
	return model.Residence{}, false
}
