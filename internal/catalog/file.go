package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML table file and merges it over the compiled-in defaults
func LoadFile(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML tables and merges them over the compiled-in defaults
func Parse(data []byte) (Tables, error) {
	var file Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Tables{}, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	merged := file.mergeOver(Defaults())
	if err := merged.Validate(); err != nil {
		return Tables{}, fmt.Errorf("%w: %w", ErrInvalidTables, err)
	}
	return merged, nil
}
