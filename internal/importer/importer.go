// Package importer converts item datasets into the YAML catalog format read by
// the game server.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/hilo/internal/game/catalog"
)

// ErrTooFewItems is returned when fewer than two items survive normalisation.
var ErrTooFewItems = errors.New("catalog needs at least two items")

// Options controls a single import run.
type Options struct {
	// Dedupe drops items whose label collides with an earlier one.
	Dedupe bool
}

// Importer orchestrates item import from a Source to a YAML catalog file.
type Importer struct {
	source Source
	opts   Options
	out    io.Writer
}

// New constructs an Importer backed by the given Source. Progress lines go to out.
//
// Precondition: source and out must be non-nil.
// Postcondition: returns a non-nil Importer.
func New(source Source, opts Options, out io.Writer) *Importer {
	return &Importer{source: source, opts: opts, out: out}
}

// Run loads items from sourcePath, normalises them, validates the marshalled
// catalog, and writes it to outputPath.
//
// Precondition: sourcePath must satisfy the source's format; the directory of
// outputPath must exist or be creatable.
// Postcondition: outputPath holds a catalog that catalog.ParseYAML accepts, or
// an error is returned and nothing is written.
func (imp *Importer) Run(sourcePath, outputPath string) error {
	overall := time.Now()

	t0 := time.Now()
	items, err := imp.source.Load(sourcePath)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}
	fmt.Fprintf(imp.out, "load    %d item(s) in %s\n", len(items), time.Since(t0).Round(time.Millisecond))

	items, dropped := Normalize(items, imp.opts.Dedupe)
	if dropped > 0 {
		fmt.Fprintf(imp.out, "drop    %d item(s)\n", dropped)
	}
	if len(items) < 2 {
		return fmt.Errorf("%s: %w", sourcePath, ErrTooFewItems)
	}

	data, err := yaml.Marshal(catalog.File{Items: items})
	if err != nil {
		return fmt.Errorf("serialising catalog: %w", err)
	}

	// Validate output is loadable before writing.
	if _, err := catalog.ParseYAML(data); err != nil {
		return fmt.Errorf("catalog failed validation: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", outputPath, err)
	}
	t1 := time.Now()
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing catalog to %s: %w", outputPath, err)
	}
	fmt.Fprintf(imp.out, "wrote   %s  (%d items)  in %s\n", outputPath, len(items), time.Since(t1).Round(time.Millisecond))

	fmt.Fprintf(imp.out, "total   %s\n", time.Since(overall).Round(time.Millisecond))
	return nil
}
