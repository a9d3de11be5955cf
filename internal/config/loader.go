package config

import (
	"os"
	"path/filepath"

	"github.com/efficientgo/core/errors"
	"gopkg.in/yaml.v3"

	"usbbw/internal/log"
)

// Load reads the configuration at path, resolves its inheritance
// chain depth-first, merges the layers, and decodes the result. A
// missing file yields the default configuration without error.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	visited := make(map[string]bool)
	merged, err := loadLayer(path, visited)
	if err != nil {
		return nil, err
	}
	return decode(merged, path)
}

// LoadOrDefault wraps Load for commands where config trouble should
// not abort the run: the error is logged and an empty default config
// is used so that topology output still works. An empty path means
// the default location, so every command resolves labels from the
// same file the label commands write to.
func LoadOrDefault(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := Load(path)
	if err != nil {
		log.Warn("config load failed, continuing without labels", "path", path, "err", err)
		return Default()
	}
	return cfg
}

// DefaultPath returns the config file location: $USBBW_CONFIG if set,
// otherwise <user config dir>/usbbw/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("USBBW_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "usbbw.yaml"
	}
	return filepath.Join(dir, "usbbw", "config.yaml")
}

// loadLayer reads one layer and recursively resolves its parents.
// Parents merge in declaration order, the child layer last, so closer
// layers win. The visited set spans the whole resolution; any file
// reached twice, including via a diamond, is treated as a cycle.
func loadLayer(path string, visited map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "resolve %s: %s", path, err)
	}
	if visited[abs] {
		return nil, errors.Wrapf(ErrConfigCycle, "layer %s inherited twice", path)
	}
	visited[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "read %s: %s", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "parse %s: %s", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	parents, err := inheritList(doc, path)
	if err != nil {
		return nil, err
	}
	delete(doc, "inherit")

	merged := map[string]any{}
	dir := filepath.Dir(path)
	for _, parent := range parents {
		if !filepath.IsAbs(parent) {
			parent = filepath.Join(dir, parent)
		}
		layer, err := loadLayer(parent, visited)
		if err != nil {
			return nil, err
		}
		merged = mergeValue(merged, layer).(map[string]any)
	}
	return mergeValue(merged, doc).(map[string]any), nil
}

// inheritList extracts the inherit key, which may be a single string
// or a list of strings.
func inheritList(doc map[string]any, path string) ([]string, error) {
	raw, ok := doc["inherit"]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Wrapf(ErrConfigParse, "%s: inherit entries must be strings", path)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrConfigParse, "%s: inherit must be a string or list", path)
	}
}

// mergeValue combines two decoded YAML values. Maps merge recursively
// with overlay keys winning, sequences concatenate base-first, and
// everything else (scalars or mismatched kinds) is replaced by the
// overlay.
func mergeValue(base, overlay any) any {
	bm, baseIsMap := base.(map[string]any)
	om, overlayIsMap := overlay.(map[string]any)
	if baseIsMap && overlayIsMap {
		for k, v := range om {
			if existing, ok := bm[k]; ok {
				bm[k] = mergeValue(existing, v)
			} else {
				bm[k] = v
			}
		}
		return bm
	}

	bs, baseIsSeq := base.([]any)
	os, overlayIsSeq := overlay.([]any)
	if baseIsSeq && overlayIsSeq {
		return append(bs, os...)
	}

	return overlay
}

// decode turns the merged document into a typed Config by running it
// back through the YAML codec onto the defaults, so absent keys keep
// their default values.
func decode(merged map[string]any, path string) (*Config, error) {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "re-encode %s: %s", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "decode %s: %s", path, err)
	}
	return cfg, nil
}
