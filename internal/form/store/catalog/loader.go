package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"intake/internal/form/models"
)

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*models.Catalog, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML catalog and validates it. Unknown keys are rejected so
// typos in field names surface at load time instead of as silently visible fields.
func Parse(r io.Reader) (*models.Catalog, []string, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c models.Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil, nil
		}
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}

	warnings, err := c.Validate()
	if err != nil {
		return nil, nil, err
	}
	return &c, warnings, nil
}
