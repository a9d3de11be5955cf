package config

import (
	"os"
	"path/filepath"

	"github.com/efficientgo/core/errors"
	"gopkg.in/yaml.v3"
)

// SetProductLabel writes a label for the given product key into the
// config file at path, creating the file if needed. Only the products
// map is touched; every other key of the document, including inherit
// references, survives untouched. The write goes to this layer only,
// never to inherited parents.
func SetProductLabel(path, key, label string) error {
	doc := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(ErrConfigParse, "parse %s: %s", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case os.IsNotExist(err):
		// Fresh file.
	default:
		return errors.Wrapf(ErrConfigParse, "read %s: %s", path, err)
	}

	products, ok := doc["products"].(map[string]any)
	if !ok {
		products = map[string]any{}
	}
	if label == "" {
		delete(products, key)
	} else {
		products[key] = label
	}
	doc["products"] = products

	return writeDoc(path, doc)
}

// Encode serializes a configuration to YAML.
func Encode(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "encode config: %s", err)
	}
	return data, nil
}

// Write serializes a full configuration to path, creating parent
// directories as needed. Used by config generation.
func Write(path string, cfg *Config) error {
	var doc map[string]any
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(ErrConfigParse, "encode config: %s", err)
	}
	return writeDoc(path, doc)
}

func writeDoc(path string, doc map[string]any) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrapf(ErrConfigParse, "encode %s: %s", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create config dir for %s", path)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
