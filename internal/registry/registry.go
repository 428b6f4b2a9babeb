// Package registry reads model descriptors from a file and merges them with
// the builtin catalog line-up.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"residencyd/internal/catalog"
	"residencyd/internal/common/fsutil"
)

// File is the on-disk registry layout:
//
//	models:
//	  - id: juggernaut-xl
//	    name: Juggernaut XL
//	    family: diffusion
//	    expected_vram_mb: 6000
type File struct {
	Models []catalog.Descriptor `json:"models" yaml:"models" toml:"models"`
}

// LoadFile reads descriptors from a .yaml/.yml, .json or .toml file and
// validates them.
func LoadFile(path string) ([]catalog.Descriptor, error) {
	if path == "" {
		return nil, fmt.Errorf("empty registry path")
	}
	abs, err := fsutil.Resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported registry extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", filepath.Base(abs), err)
	}
	if err := Validate(f.Models); err != nil {
		return nil, fmt.Errorf("registry %s: %w", filepath.Base(abs), err)
	}
	return f.Models, nil
}

// Validate checks ids are present and unique, families are known and
// footprints are not negative.
func Validate(ds []catalog.Descriptor) error {
	seen := make(map[string]struct{}, len(ds))
	for i, d := range ds {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("model %d: empty id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("model %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Family == catalog.FamilyUnknown {
			return fmt.Errorf("model %q: missing family", d.ID)
		}
		if d.ExpectedVRAMMB < 0 {
			return fmt.Errorf("model %q: negative expected_vram_mb", d.ID)
		}
	}
	return nil
}

// Merge returns base with extra applied: entries with a known id replace
// the base entry in place, new ids are appended in order.
func Merge(base, extra []catalog.Descriptor) []catalog.Descriptor {
	out := make([]catalog.Descriptor, len(base))
	copy(out, base)
	idx := make(map[string]int, len(out))
	for i, d := range out {
		idx[d.ID] = i
	}
	for _, d := range extra {
		if i, ok := idx[d.ID]; ok {
			out[i] = d
			continue
		}
		idx[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
