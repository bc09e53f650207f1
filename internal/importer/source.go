package importer

import (
	"fmt"
	"os"

	"github.com/cory-johannsen/hilo/internal/game/catalog"
)

// Source reads items from a format-specific input file.
//
// Precondition: path must name a readable file in the source's format.
// Postcondition: returns the parsed items in file order, or a non-nil error.
type Source interface {
	Load(path string) ([]catalog.Item, error)
}

// TextSource reads the legacy pipe-delimited format ("label|value|image_url").
type TextSource struct{}

// Load implements Source.
func (TextSource) Load(path string) ([]catalog.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return catalog.ParseText(data)
}

// YAMLSource reads an existing YAML catalog, e.g. to normalise it.
type YAMLSource struct{}

// Load implements Source.
func (YAMLSource) Load(path string) ([]catalog.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return catalog.ParseYAML(data)
}

// SourceFor returns the Source registered for format ("text" or "yaml").
//
// Postcondition: returns a non-nil Source, or an error naming the unknown format.
func SourceFor(format string) (Source, error) {
	switch format {
	case "text", "txt":
		return TextSource{}, nil
	case "yaml", "yml":
		return YAMLSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported source format %q (want text or yaml)", format)
	}
}
