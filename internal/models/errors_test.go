package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("failed to load dataset: %w", NotFound("/tmp/a+orig.HEAD", os.ErrNotExist))

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected wrapped error to match ErrNotFound")
	}
	if errors.Is(err, ErrParse) {
		t.Errorf("Expected wrapped error not to match ErrParse")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected cause to remain reachable through Unwrap")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("Expected kind %v, got %v", KindNotFound, KindOf(err))
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Errorf("Expected zero kind for a plain error")
	}
}

func TestGeometryMismatchMessage(t *testing.T) {
	err := GeometryMismatch("scan+orig.HEAD", [3]int{32, 32, 20}, [3]int{64, 64, 28})
	msg := err.Error()
	for _, want := range []string{"geometry mismatch", "scan+orig.HEAD", "32x32x20", "64x64x28"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message %q to contain %q", msg, want)
		}
	}
}

func TestParseErrorf(t *testing.T) {
	err := ParseErrorf("x.HEAD", "BRICK_TYPES", "unrecognized code %d", 7)
	if err.Kind != KindParse || err.Attribute != "BRICK_TYPES" {
		t.Fatalf("Unexpected error fields: %+v", err)
	}
	if !strings.Contains(err.Error(), "unrecognized code 7") {
		t.Errorf("Expected detail in message, got %q", err.Error())
	}
}
