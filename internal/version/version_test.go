package version

import (
	"testing"

	"github.com/blang/semver"
)

func TestVersion(t *testing.T) {
	if String() != "v2.6.0" {
		t.Errorf("Expected v2.6.0, got %s", String())
	}
	if Version.LT(semver.MustParse("2.0.0")) {
		t.Errorf("Expected version at least 2.0.0, got %s", Version)
	}
}
