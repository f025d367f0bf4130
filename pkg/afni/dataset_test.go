package afni

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"afniplace/internal/models"
)

// writeDataset writes a small int16 dataset recorded in the given byte order
func writeDataset(t *testing.T, base string, order ByteOrder) *Volume {
	t.Helper()
	vol := NewVolume(4, 3, 2, 2, Int16)
	for i := range vol.Real {
		vol.Real[i] = float64(i - 10)
	}

	// attributes in registry order so a load/save cycle is byte-identical
	table := NewTable()
	table.Set(NewStringAttribute("BRICK_LABS", "'first~second~"))
	table.Set(NewIntAttribute("BRICK_TYPES", 1, 1))
	table.Set(NewStringAttribute("BYTEORDER_STRING", "'"+order.Marker()+"~"))
	table.Set(NewIntAttribute("DATASET_DIMENSIONS", 4, 3, 2, 0, 0))
	table.Set(NewIntAttribute("DATASET_RANK", 3, 2, 0, 0, 0, 0, 0, 0))
	table.Set(NewIntAttribute("ORIENT_SPECIFIC", 0, 2, 4))

	raw, err := Encode(vol, order)
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	if err := os.WriteFile(base+".BRIK", raw, 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := os.WriteFile(base+".HEAD", []byte(SerializeString(table)), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return vol
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "epi+orig")
	want := writeDataset(t, src, HostOrder())

	loader := NewLoader(nil)
	ds, err := loader.Load(src + ".HEAD")
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}
	if ds.Path != src {
		t.Errorf("Expected path %s, got %s", src, ds.Path)
	}
	if ds.Volume.Dims() != [3]int{4, 3, 2} || ds.Volume.NT != 2 {
		t.Fatalf("Unexpected volume shape %v x %d", ds.Volume.Dims(), ds.Volume.NT)
	}
	for i := range want.Real {
		if ds.Volume.Real[i] != want.Real[i] {
			t.Fatalf("Voxel %d: expected %v, got %v", i, want.Real[i], ds.Volume.Real[i])
		}
	}
	if ds.Info.SubBrickLabels[1] != "second" {
		t.Errorf("Unexpected labels %v", ds.Info.SubBrickLabels)
	}

	dst := filepath.Join(dir, "copy+tlrc")
	if err := ds.Save(dst + ".HEAD"); err != nil {
		t.Fatalf("Failed to save dataset: %v", err)
	}

	origHead, _ := os.ReadFile(src + ".HEAD")
	newHead, _ := os.ReadFile(dst + ".HEAD")
	if !bytes.Equal(origHead, newHead) {
		t.Errorf("Header changed on save:\n%s\nvs\n%s", origHead, newHead)
	}
	origBrik, _ := os.ReadFile(src + ".BRIK")
	newBrik, _ := os.ReadFile(dst + ".BRIK")
	if !bytes.Equal(origBrik, newBrik) {
		t.Error("BRIK changed on save")
	}
}

func TestSaveRewritesByteOrder(t *testing.T) {
	dir := t.TempDir()
	foreign := LittleEndian
	if HostOrder() == LittleEndian {
		foreign = BigEndian
	}
	src := filepath.Join(dir, "epi+orig")
	want := writeDataset(t, src, foreign)

	ds, err := NewLoader(nil).Load(src)
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}
	for i := range want.Real {
		if ds.Volume.Real[i] != want.Real[i] {
			t.Fatalf("Voxel %d: expected %v after byte swap, got %v", i, want.Real[i], ds.Volume.Real[i])
		}
	}
	if !ds.ByteOrderDrift() {
		t.Fatal("Expected byte order drift to be detected")
	}

	dst := filepath.Join(dir, "out+orig")
	if err := ds.Save(dst); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	head, _ := os.ReadFile(dst + ".HEAD")
	if !strings.Contains(string(head), HostOrder().Marker()) {
		t.Errorf("Expected header to record %s:\n%s", HostOrder().Marker(), head)
	}

	again, err := NewLoader(nil).Load(dst)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	for i := range want.Real {
		if again.Volume.Real[i] != want.Real[i] {
			t.Fatalf("Voxel %d: expected %v after reload, got %v", i, want.Real[i], again.Volume.Real[i])
		}
	}
}

func TestSaveDtypeMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "epi+orig")
	writeDataset(t, src, HostOrder())

	ds, err := NewLoader(nil).Load(src)
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}
	ds.Volume.DType = Float32
	for i := range ds.Volume.BrickTypes {
		ds.Volume.BrickTypes[i] = Float32
	}

	dst := filepath.Join(dir, "bad+orig")
	err = ds.Save(dst)
	if !errors.Is(err, models.ErrDtypeMismatch) {
		t.Fatalf("Expected dtype mismatch, got %v", err)
	}
	for _, ext := range []string{".HEAD", ".BRIK"} {
		if _, statErr := os.Stat(dst + ext); !os.IsNotExist(statErr) {
			t.Errorf("Expected no %s to be written", ext)
		}
	}
}

func TestSaveLeavesNoPartialPair(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "epi+orig")
	writeDataset(t, src, HostOrder())
	ds, err := NewLoader(nil).Load(src)
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}

	// a directory in place of the header makes the final rename fail
	dst := filepath.Join(dir, "out+orig")
	if err := os.MkdirAll(filepath.Join(dst+".HEAD", "sub"), 0755); err != nil {
		t.Fatalf("Failed to create blocking directory: %v", err)
	}
	if err := ds.Save(dst); err == nil {
		t.Fatal("Expected save to fail")
	}
	if _, err := os.Stat(dst + ".BRIK"); !os.IsNotExist(err) {
		t.Errorf("Expected no orphan BRIK, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temporary file %s left behind", e.Name())
		}
	}
}

func TestSaveRequiresView(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "epi+orig")
	writeDataset(t, src, HostOrder())
	ds, err := NewLoader(nil).Load(src)
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}

	for _, name := range []string{"noview", "epi+orig_x", "epi+mni"} {
		if err := ds.Save(filepath.Join(dir, name)); !errors.Is(err, models.ErrParse) {
			t.Errorf("%s: expected parse error, got %v", name, err)
		}
	}
}

func TestLoadGzipBrik(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "epi+acpc")
	want := writeDataset(t, src, HostOrder())

	raw, _ := os.ReadFile(src + ".BRIK")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()
	os.Remove(src + ".BRIK")
	if err := os.WriteFile(src+".BRIK.gz", buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write gzip fixture: %v", err)
	}

	ds, err := NewLoader(nil).Load(src + ".BRIK.gz")
	if err != nil {
		t.Fatalf("Failed to load gzip dataset: %v", err)
	}
	if ds.Volume.Real[5] != want.Real[5] {
		t.Errorf("Expected voxel %v, got %v", want.Real[5], ds.Volume.Real[5])
	}
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader(nil).Load(filepath.Join(dir, "missing+orig.HEAD"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	// header without its brick
	src := filepath.Join(dir, "epi+orig")
	writeDataset(t, src, HostOrder())
	os.Remove(src + ".BRIK")
	if _, err := NewLoader(nil).Load(src); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found for missing BRIK, got %v", err)
	}
}

func TestViewOfAndTrimExt(t *testing.T) {
	tests := map[string]string{
		"a/epi+orig.HEAD":    "+orig",
		"a/epi+tlrc.BRIK":    "+tlrc",
		"a/epi+acpc.BRIK.gz": "+acpc",
		"a/epi+acpc":         "+acpc",
		"a/epi.HEAD":         "",
		"a/HEAD+orig_x.HEAD": "",
	}
	for in, want := range tests {
		if got := ViewOf(in); got != want {
			t.Errorf("ViewOf(%q): expected %q, got %q", in, want, got)
		}
	}
	// exact suffix removal, not character trimming
	if got := TrimExt("DAHE+orig.HEAD"); got != "DAHE+orig" {
		t.Errorf("Unexpected TrimExt result %q", got)
	}
}
