package place

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"afniplace/internal/models"
)

// FileKind names the single-file inputs of a run
type FileKind int

const (
	ParScanFile FileKind = iota
	DmapFile
)

func (k FileKind) String() string {
	switch k {
	case ParScanFile:
		return "ParScan"
	case DmapFile:
		return "Dmap"
	}
	return fmt.Sprintf("FileKind(%d)", int(k))
}

// Selector supplies the inputs of a run. Implementations may prompt a user,
// read flags or return fixed values.
type Selector interface {
	SelectInputPaths() ([]string, error)
	SelectOutputDir() (string, error)
	SelectFile(kind FileKind) (string, error)
}

// StaticSelector returns preset paths
type StaticSelector struct {
	Inputs    []string
	OutputDir string
	ParScan   string
	Dmap      string
}

func (s *StaticSelector) SelectInputPaths() ([]string, error) {
	if len(s.Inputs) == 0 {
		return nil, errors.New("no datasets were selected for PLACE correction")
	}
	return append([]string(nil), s.Inputs...), nil
}

// SelectOutputDir defaults to the directory of the first input
func (s *StaticSelector) SelectOutputDir() (string, error) {
	if s.OutputDir != "" {
		return s.OutputDir, nil
	}
	if len(s.Inputs) == 0 {
		return "", errors.New("no save directory was selected")
	}
	return filepath.Dir(s.Inputs[0]), nil
}

func (s *StaticSelector) SelectFile(kind FileKind) (string, error) {
	var path string
	switch kind {
	case ParScanFile:
		path = s.ParScan
	case DmapFile:
		path = s.Dmap
	default:
		return "", fmt.Errorf("unknown file kind %v", kind)
	}
	if path == "" {
		return "", fmt.Errorf("no %s file was selected", kind)
	}
	return path, nil
}

// Selection is a complete set of run inputs
type Selection struct {
	Inputs    []string
	ParScan   string
	Dmap      string
	OutputDir string
}

// Select asks sel for every input
func Select(sel Selector) (*Selection, error) {
	inputs, err := sel.SelectInputPaths()
	if err != nil {
		return nil, err
	}
	parscan, err := sel.SelectFile(ParScanFile)
	if err != nil {
		return nil, err
	}
	dmap, err := sel.SelectFile(DmapFile)
	if err != nil {
		return nil, err
	}
	outDir, err := sel.SelectOutputDir()
	if err != nil {
		return nil, err
	}
	return &Selection{Inputs: inputs, ParScan: parscan, Dmap: dmap, OutputDir: outDir}, nil
}

// Validate checks that every path exists and follows the naming
// conventions: datasets end in .HEAD, the scan parameter and displacement
// map basenames start with ParScan and Dmap. All problems are returned
// together.
func (s *Selection) Validate() error {
	var errs []error
	for _, p := range s.Inputs {
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, models.NotFound(p, err))
		}
		if !strings.HasSuffix(p, ".HEAD") {
			errs = append(errs, models.ParseErrorf(p, "", "dataset path does not end with .HEAD"))
		}
	}
	for _, f := range []struct {
		path string
		kind FileKind
	}{{s.ParScan, ParScanFile}, {s.Dmap, DmapFile}} {
		if _, err := os.Stat(f.path); err != nil {
			errs = append(errs, models.NotFound(f.path, err))
		}
		if !strings.HasPrefix(filepath.Base(f.path), f.kind.String()) {
			errs = append(errs, models.ParseErrorf(f.path, "", "does not appear to point to a %s file", f.kind))
		}
	}
	if fi, err := os.Stat(s.OutputDir); err != nil {
		errs = append(errs, models.NotFound(s.OutputDir, err))
	} else if !fi.IsDir() {
		errs = append(errs, fmt.Errorf("save path %s is not a directory", s.OutputDir))
	}
	return errors.Join(errs...)
}
