package place

import (
	"os"
	"path/filepath"
	"strings"

	"afniplace/internal/models"
	"afniplace/pkg/afni"
)

// OutputName returns the dataset prefix a corrected copy of headPath is saved
// under: suffix is inserted before the view, and the result lives in outDir.
// For example /data/epi+orig.HEAD becomes <outDir>/epi_pc+orig.
func OutputName(headPath, outDir, suffix string) (string, error) {
	base := afni.TrimExt(filepath.Base(headPath))
	view := afni.ViewOf(base)
	if view == "" {
		return "", models.ParseErrorf(headPath, "", "dataset name must end with one of %s", strings.Join(afni.Views, ", "))
	}
	stem := strings.TrimSuffix(base, view)
	return filepath.Join(outDir, stem+suffix+view), nil
}

// checkCollision fails if either half of the output dataset already exists
func checkCollision(outBase string) error {
	for _, ext := range []string{".HEAD", ".BRIK", ".BRIK.gz"} {
		if _, err := os.Stat(outBase + ext); err == nil {
			return models.OutputCollision(outBase + ext)
		}
	}
	return nil
}
