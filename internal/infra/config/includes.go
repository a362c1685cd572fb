package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// includeWalker overlays included YAML files onto a Config. Scalar and map
// settings from later files win; city entries accumulate across files so a
// deployment can keep one file per city (e.g. "cities.d/*.yaml").
type includeWalker struct {
	seen map[string]bool // absolute paths already merged
}

func newIncludeWalker(root string) *includeWalker {
	return &includeWalker{seen: map[string]bool{root: true}}
}

// apply merges every file named by cfg.Includes, resolved against dir.
func (w *includeWalker) apply(cfg *Config, dir string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		files, err := expandInclude(pattern, dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := w.merge(cfg, f, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *includeWalker) merge(cfg *Config, path string, depth int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config includes: abs path %q: %w", path, err)
	}
	if w.seen[abs] {
		return fmt.Errorf("config includes: circular include detected for %q", abs)
	}
	w.seen[abs] = true

	if err := validatePermissions(abs); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", abs, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	prior := cfg.Cities
	cfg.Cities = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", abs, err)
	}
	cfg.Cities = append(prior, cfg.Cities...)

	if len(cfg.Includes) > 0 {
		return w.apply(cfg, filepath.Dir(abs), depth)
	}
	return nil
}

// expandInclude resolves pattern against dir. Relative patterns may not
// climb out of dir. A glob that matches nothing yields no files; a literal
// path is returned as-is so a missing file surfaces as a read error.
func expandInclude(pattern, dir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(dir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	return matches, nil
}
