package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/bram-map/internal/validator"
)

// libraryFile is the on-disk layout of a template library.
type libraryFile struct {
	Templates []*Template `json:"templates"`
}

// LoadFile reads a template library from a YAML (.yaml, .yml) or JSON file.
// The document is checked against the template schema before decoding.
func LoadFile(path string) ([]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parsing template file %s: %w", path, err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("template file %s: unsupported extension", path)
	}

	return decode(path, data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func decode(path string, jsonBytes []byte) ([]*Template, error) {
	v, err := validator.NewTemplateValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateJSON(jsonBytes); err != nil {
		return nil, fmt.Errorf("template file %s: %w", path, err)
	}

	var lib libraryFile
	if err := json.Unmarshal(jsonBytes, &lib); err != nil {
		return nil, fmt.Errorf("parsing template file %s: %w", path, err)
	}
	for _, t := range lib.Templates {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template file %s: %w", path, err)
		}
	}
	return lib.Templates, nil
}

// LoadFiles returns the built-in library extended with the templates of the
// given files. Later files replace same-named templates.
func LoadFiles(paths []string) (*Library, error) {
	lib := Builtin()
	for _, path := range paths {
		templates, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, t := range templates {
			if err := lib.Add(t); err != nil {
				return nil, err
			}
		}
	}
	return lib, nil
}

// SaveFile writes templates as a YAML library.
func SaveFile(path string, templates []*Template) error {
	data, err := yaml.Marshal(libraryFile{Templates: templates})
	if err != nil {
		return fmt.Errorf("marshaling templates: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing template file: %w", err)
	}
	return nil
}
