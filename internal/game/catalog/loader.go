package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the YAML document layout of an item catalog.
type File struct {
	Items []Item `yaml:"items"`
}

// DefaultItems is the built-in dataset used when no item file is available.
func DefaultItems() []Item {
	return []Item{
		{Label: "iPhone 15 Pro", Value: 1199, ImageURL: "https://images.unsplash.com/photo-1695048133142-1a20484d2569?w=400"},
		{Label: "MacBook Pro", Value: 2499, ImageURL: "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=400"},
		{Label: "PlayStation 5", Value: 499, ImageURL: "https://images.unsplash.com/photo-1606813907291-d86efa9b94db?w=400"},
		{Label: "Nike Air Jordan", Value: 170, ImageURL: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=400"},
		{Label: "Tesla Model 3", Value: 42990, ImageURL: "https://images.unsplash.com/photo-1560958089-b8a1929cea89?w=400"},
	}
}

// placeholderItems backfills a dataset too small to play.
func placeholderItems() []Item {
	return []Item{
		{Label: "Item A", Value: 100, ImageURL: "https://via.placeholder.com/400"},
		{Label: "Item B", Value: 200, ImageURL: "https://via.placeholder.com/400"},
	}
}

// LoadFile reads an item file. Files ending in .yaml or .yml use the YAML
// layout; .txt files use the line format "label|value|image_url" with "#"
// comments.
//
// Precondition: path must name a readable file with a supported extension.
// Postcondition: Returns the parsed items in file order, or a non-nil error.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading item file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".txt":
		return ParseText(data)
	default:
		return nil, fmt.Errorf("unsupported item file extension %q", filepath.Ext(path))
	}
}

// ParseYAML parses and validates a YAML item document.
//
// Postcondition: Every returned item has a non-empty label.
func ParseYAML(data []byte) ([]Item, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing item YAML: %w", err)
	}
	for i, it := range f.Items {
		if strings.TrimSpace(it.Label) == "" {
			return nil, fmt.Errorf("item %d: label must not be empty", i)
		}
	}
	return f.Items, nil
}

// ParseText parses the line format "label|value|image_url". Blank lines and
// lines starting with "#" are skipped, as are lines with fewer than two
// fields. The image URL is optional.
//
// Postcondition: Returns the parsed items or an error naming the first line
// whose value is not an integer.
func ParseText(data []byte) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "|")
		if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: value %q is not an integer", line, fields[1])
		}
		item := Item{Label: strings.TrimSpace(fields[0]), Value: value}
		if len(fields) > 2 {
			item.ImageURL = strings.TrimSpace(fields[2])
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning item text: %w", err)
	}
	return items, nil
}

// LoadWithFallback loads path and degrades instead of failing: a missing file
// or empty path yields DefaultItems, and a dataset with fewer than two items
// is replaced by two placeholders. Parse errors are returned.
//
// Precondition: logger must be non-nil.
// Postcondition: On success the returned slice holds at least two items.
func LoadWithFallback(path string, logger *zap.Logger) ([]Item, error) {
	if path == "" {
		logger.Info("no item file configured, using default items", zap.Int("count", len(DefaultItems())))
		return DefaultItems(), nil
	}

	items, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("item file not found, using default items", zap.String("path", path))
			return DefaultItems(), nil
		}
		return nil, err
	}

	if len(items) < 2 {
		logger.Warn("not enough items loaded, using placeholders",
			zap.String("path", path),
			zap.Int("loaded", len(items)),
		)
		return placeholderItems(), nil
	}

	logger.Info("item catalog loaded", zap.String("path", path), zap.Int("count", len(items)))
	return items, nil
}
