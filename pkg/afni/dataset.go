package afni

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"afniplace/internal/models"
)

// Views are the coordinate-space suffixes a dataset name must end with
var Views = []string{"+orig", "+acpc", "+tlrc"}

// Dataset is a loaded .HEAD/.BRIK pair
type Dataset struct {
	// Path is the common prefix of both files, e.g. /data/epi+orig
	Path string

	Header *Table
	Info   DerivedInfo
	Volume *Volume
}

// Loader reads datasets, sharing one attribute registry across loads so
// names discovered in one header are recognized in the next.
type Loader struct {
	Registry *Registry
	Log      logrus.FieldLogger
}

// NewLoader creates a loader with the default registry. log may be nil.
func NewLoader(log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := NewRegistry()
	reg.OnExtend = func(name string) {
		log.WithField("attribute", name).Debug("New attribute that was not originally listed was added")
	}
	reg.OnSkip = func(name string, line int) {
		log.WithFields(logrus.Fields{"attribute": name, "line": line}).Debug("Skipping name without a type line")
	}
	return &Loader{Registry: reg, Log: log}
}

// TrimExt removes a trailing .HEAD, .BRIK or .BRIK.gz
func TrimExt(path string) string {
	for _, ext := range []string{".HEAD", ".BRIK.gz", ".BRIK"} {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}

// ViewOf returns the view suffix of a dataset path, or "" if it has none
func ViewOf(path string) string {
	base := TrimExt(path)
	for _, v := range Views {
		if strings.HasSuffix(base, v) {
			return v
		}
	}
	return ""
}

// Load reads path.HEAD and path.BRIK (or path.BRIK.gz). path may carry
// either extension or none.
func (l *Loader) Load(path string) (*Dataset, error) {
	base := TrimExt(path)
	headPath := base + ".HEAD"

	f, err := os.Open(headPath)
	if err != nil {
		return nil, models.NotFound(headPath, err)
	}
	table, err := Parse(f, l.Registry, headPath)
	f.Close()
	if err != nil {
		return nil, err
	}

	info, err := Derive(table, headPath, l.Log)
	if err != nil {
		return nil, err
	}

	raw, brikPath, err := readBrik(base)
	if err != nil {
		return nil, err
	}

	vol, err := Decode(raw, info.BrickTypes, info.ByteOrder, info.Dims)
	if err != nil {
		return nil, withPath(err, brikPath)
	}

	l.Log.WithFields(logrus.Fields{
		"path":  base,
		"dims":  fmt.Sprintf("%dx%dx%dx%d", vol.NX, vol.NY, vol.NZ, vol.NT),
		"dtype": info.DType.String(),
		"order": info.ByteOrder.String(),
	}).Debug("Dataset loaded")

	return &Dataset{Path: base, Header: table, Info: info, Volume: vol}, nil
}

func readBrik(base string) ([]byte, string, error) {
	brikPath := base + ".BRIK"
	raw, err := os.ReadFile(brikPath)
	if err == nil {
		return raw, brikPath, nil
	}
	if !os.IsNotExist(err) {
		return nil, brikPath, models.NotFound(brikPath, err)
	}

	gzPath := brikPath + ".gz"
	f, gzErr := os.Open(gzPath)
	if gzErr != nil {
		return nil, brikPath, models.NotFound(brikPath, err)
	}
	defer f.Close()

	zr, gzErr := gzip.NewReader(f)
	if gzErr != nil {
		return nil, gzPath, models.ParseErrorf(gzPath, "", "invalid gzip stream: %v", gzErr)
	}
	defer zr.Close()

	raw, gzErr = io.ReadAll(zr)
	if gzErr != nil {
		return nil, gzPath, models.ParseErrorf(gzPath, "", "failed to decompress: %v", gzErr)
	}
	return raw, gzPath, nil
}

// Save writes the dataset to path.BRIK and path.HEAD in the host byte order.
//
// path must end in a view suffix (optionally followed by .HEAD or .BRIK).
// Save refuses to write anything if the voxel array's element types differ
// from those the header declares. If the header records a byte order other
// than the host's, BYTEORDER_STRING is rewritten.
func (d *Dataset) Save(path string) error {
	base := TrimExt(path)
	if ViewOf(base) == "" {
		return models.ParseErrorf(base, "", "dataset name must end with one of %s", strings.Join(Views, ", "))
	}

	if err := d.checkDType(base); err != nil {
		return err
	}
	if d.Volume.Dims() != d.Info.Dims || d.Volume.NT != d.Info.NumBricks {
		return fmt.Errorf("volume %v with %d sub-bricks does not match header %v with %d", d.Volume.Dims(), d.Volume.NT, d.Info.Dims, d.Info.NumBricks)
	}

	host := HostOrder()
	raw, err := Encode(d.Volume, host)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", base, err)
	}

	if d.ByteOrderDrift() {
		d.Header.Set(NewStringAttribute("BYTEORDER_STRING", "'"+host.Marker()+"~"))
	}
	d.Info.ByteOrder = host

	var head bytes.Buffer
	if err := Serialize(&head, d.Header); err != nil {
		return fmt.Errorf("failed to serialize header %s: %w", base, err)
	}

	if err := writePair(base, raw, head.Bytes()); err != nil {
		return err
	}
	d.Path = base
	return nil
}

// writePair stages both files next to their targets and renames them into
// place. A failure leaves neither file behind.
func writePair(base string, brik, head []byte) error {
	dir := filepath.Dir(base)
	tmpBrik, err := writeTemp(dir, brik)
	if err != nil {
		return fmt.Errorf("failed to write %s.BRIK: %w", base, err)
	}
	tmpHead, err := writeTemp(dir, head)
	if err != nil {
		os.Remove(tmpBrik)
		return fmt.Errorf("failed to write %s.HEAD: %w", base, err)
	}

	if err := os.Rename(tmpBrik, base+".BRIK"); err != nil {
		os.Remove(tmpBrik)
		os.Remove(tmpHead)
		return fmt.Errorf("failed to write %s.BRIK: %w", base, err)
	}
	if err := os.Rename(tmpHead, base+".HEAD"); err != nil {
		os.Remove(tmpHead)
		os.Remove(base + ".BRIK")
		return fmt.Errorf("failed to write %s.HEAD: %w", base, err)
	}
	return nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".afni-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func (d *Dataset) checkDType(base string) error {
	want := d.Info.DType
	got := d.Volume.DType
	if want == MultipleTypes || got == MultipleTypes {
		return models.DtypeMismatch(base, got.String(), want.String())
	}
	if got != want {
		return models.DtypeMismatch(base, got.String(), want.String())
	}
	for i, bt := range d.Volume.BrickTypes {
		if i >= len(d.Info.BrickTypes) || bt != d.Info.BrickTypes[i] {
			return models.DtypeMismatch(base, bt.String(), want.String())
		}
	}
	return nil
}

// ByteOrderDrift reports whether saving on this machine will rewrite the
// header's BYTEORDER_STRING.
func (d *Dataset) ByteOrderDrift() bool {
	a, ok := d.Header.Get("BYTEORDER_STRING")
	return !ok || !strings.Contains(a.Str, HostOrder().Marker())
}
