package afni

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"afniplace/internal/models"
)

// DType is the element type of a sub-brick; values equal the BRICK_TYPES code
type DType int

const (
	Uint8      DType = 0
	Int16      DType = 1
	Float32    DType = 3
	Complex128 DType = 5

	// MultipleTypes marks a dataset whose sub-bricks use different codes
	MultipleTypes DType = -1
)

// DTypeFromCode maps a BRICK_TYPES code to its element type
func DTypeFromCode(code int) (DType, error) {
	switch DType(code) {
	case Uint8, Int16, Float32, Complex128:
		return DType(code), nil
	}
	return 0, models.ParseErrorf("", "BRICK_TYPES", "unrecognized type code %d", code)
}

// Size is the on-disk element size in bytes
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int16:
		return 2
	case Float32:
		return 4
	case Complex128:
		return 16
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	case Complex128:
		return "complex128"
	case MultipleTypes:
		return "Multiple Types"
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// IsComplex reports whether elements carry an imaginary part
func (d DType) IsComplex() bool {
	return d == Complex128
}

// ByteOrder is the byte order recorded for a .BRIK file
type ByteOrder int

const (
	NativeOrder ByteOrder = iota
	LittleEndian
	BigEndian
)

func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	}
	return "native"
}

// HostOrder returns the byte order of the executing machine
func HostOrder() ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

// Resolve replaces NativeOrder with the host's concrete order
func (o ByteOrder) Resolve() ByteOrder {
	if o == NativeOrder {
		return HostOrder()
	}
	return o
}

// Binary returns the encoding/binary implementation for the order
func (o ByteOrder) Binary() binary.ByteOrder {
	if o.Resolve() == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Marker is the BYTEORDER_STRING token for the order
func (o ByteOrder) Marker() string {
	if o.Resolve() == BigEndian {
		return "MSB_FIRST"
	}
	return "LSB_FIRST"
}

var orientCodes = [...]string{"RL", "LR", "PA", "AP", "IS", "SI"}

// OrientationFromCode maps an ORIENT_SPECIFIC code to its axis label
func OrientationFromCode(code int) (string, error) {
	if code < 0 || code >= len(orientCodes) {
		return "", models.ParseErrorf("", "ORIENT_SPECIFIC", "unrecognized orientation code %d", code)
	}
	return orientCodes[code], nil
}

// DerivedInfo holds values computed from the header. None of it is
// written back to disk.
type DerivedInfo struct {
	// Dims is the spatial grid (x, y, z)
	Dims [3]int

	// NumBricks is the number of sub-bricks (timepoints)
	NumBricks int

	// DType is the common element type or MultipleTypes
	DType DType

	// BrickTypes holds the per-sub-brick element type
	BrickTypes []DType

	ByteOrder   ByteOrder
	Orientation []string

	SubBrickLabels []string
	StatDOF        []string
}

// Derive computes DerivedInfo from a parsed header. DATASET_DIMENSIONS,
// DATASET_RANK, BRICK_TYPES and ORIENT_SPECIFIC are mandatory.
func Derive(t *Table, path string, log logrus.FieldLogger) (DerivedInfo, error) {
	var info DerivedInfo

	dims, ok := t.Ints("DATASET_DIMENSIONS")
	if !ok || len(dims) < 3 {
		return info, models.ParseErrorf(path, "DATASET_DIMENSIONS", "missing or shorter than 3 values")
	}
	for i := 0; i < 3; i++ {
		if dims[i] <= 0 {
			return info, models.ParseErrorf(path, "DATASET_DIMENSIONS", "non-positive dimension %d", dims[i])
		}
		info.Dims[i] = dims[i]
	}

	rank, ok := t.Ints("DATASET_RANK")
	if !ok || len(rank) < 2 || rank[1] <= 0 {
		return info, models.ParseErrorf(path, "DATASET_RANK", "missing or without a sub-brick count")
	}
	info.NumBricks = rank[1]

	types, ok := t.Ints("BRICK_TYPES")
	if !ok || len(types) == 0 {
		return info, models.ParseErrorf(path, "BRICK_TYPES", "missing")
	}
	if len(types) != info.NumBricks {
		return info, models.ParseErrorf(path, "BRICK_TYPES", "%d codes for %d sub-bricks", len(types), info.NumBricks)
	}
	info.BrickTypes = make([]DType, len(types))
	for i, code := range types {
		d, err := DTypeFromCode(code)
		if err != nil {
			return info, withPath(err, path)
		}
		info.BrickTypes[i] = d
	}
	info.DType = info.BrickTypes[0]
	for _, d := range info.BrickTypes[1:] {
		if d != info.DType {
			info.DType = MultipleTypes
			break
		}
	}

	if a, ok := t.Get("BYTEORDER_STRING"); ok {
		switch {
		case strings.Contains(a.Str, "LSB_FIRST"):
			info.ByteOrder = LittleEndian
		case strings.Contains(a.Str, "MSB_FIRST"):
			info.ByteOrder = BigEndian
		default:
			return info, models.ParseErrorf(path, "BYTEORDER_STRING", "unrecognized byte order %q", a.Str)
		}
	} else {
		info.ByteOrder = NativeOrder
		if log != nil {
			log.WithField("path", path).Warn("BYTEORDER_STRING not found, defaulting to native")
		}
	}

	orient, ok := t.Ints("ORIENT_SPECIFIC")
	if !ok {
		return info, models.ParseErrorf(path, "ORIENT_SPECIFIC", "no orientation information found")
	}
	for _, code := range orient {
		label, err := OrientationFromCode(code)
		if err != nil {
			return info, withPath(err, path)
		}
		info.Orientation = append(info.Orientation, label)
	}

	if a, ok := t.Get("BRICK_LABS"); ok && a.Kind == StringAttr {
		info.SubBrickLabels = a.Tokens("~")
	}
	if a, ok := t.Get("BRICK_STATSYM"); ok && a.Kind == StringAttr {
		info.StatDOF = a.Tokens(";")
	}
	return info, nil
}

func withPath(err error, path string) error {
	if e, ok := err.(*models.Error); ok && e.Path == "" {
		e.Path = path
	}
	return err
}
