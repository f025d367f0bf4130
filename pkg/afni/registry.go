package afni

import "sync"

// knownAttributes are the names typically found in an AFNI .HEAD file
var knownAttributes = []string{
	"BRICK_FLOAT_FACS",
	"BRICK_KEYWORDS",
	"BRICK_LABS",
	"BRICK_STATAUX",
	"BRICK_STATS",
	"BRICK_STATSYM",
	"BRICK_TYPES",
	"BYTEORDER_STRING",
	"DATASET_DIMENSIONS",
	"DATASET_KEYWORDS",
	"DATASET_NAME",
	"DATASET_RANK",
	"HISTORY_NOTE",
	"IDCODE_ANAT_PARENT",
	"IDCODE_DATE",
	"IDCODE_STRING",
	"IDCODE_WARP_PARENT",
	"IJK_TO_DICOM",
	"IJK_TO_DICOM_REAL",
	"INT_CMAP",
	"LABEL_1",
	"LABEL_2",
	"MARKS_FLAGS",
	"MARKS_HELP",
	"MARKS_LAB",
	"MARKS_XYZ",
	"NOTES_COUNT",
	"NOTE_NUMBER_001",
	"ORIENT_SPECIFIC",
	"ORIGIN",
	"DELTA",
	"SCENE_DATA",
	"STAT_AUX",
	"TAGALIGN_MATVEC",
	"TAGSET_FLOATS",
	"TAGSET_LABELS",
	"TAGSET_NUM",
	"TAXIS_FLOATS",
	"TAXIS_NUMS",
	"TAXIS_OFFSETS",
	"TEMPLATE_SPACE",
	"TO3D_ZPAD",
	"TYPESTRING",
	"VOLREG_BASE_IDCODE",
	"VOLREG_BASE_NAME",
	"VOLREG_CENTER_BASE",
	"VOLREG_CENTER_OLD",
	"VOLREG_GRIDPARENT_IDCODE",
	"VOLREG_GRIDPARENT_NAME",
	"VOLREG_INPUT_IDCODE",
	"VOLREG_INPUT_NAME",
	"VOLREG_ROTCOM_NUM",
	"VOLREG_ROTPARENT_IDCODE",
	"VOLREG_ROTPARENT_NAME",
	"WARP_DATA",
	"WARP_TYPE",
	"WORSLEY_DF",
	"WORSLEY_FWHM",
	"WORSLEY_NCONJ",
}

// Registry is the ordered list of recognized attribute names. It grows when
// a parsed header contains names it has not seen.
type Registry struct {
	mu    sync.Mutex
	names []string
	index map[string]struct{}

	// OnExtend, if set, is called for every newly discovered name
	OnExtend func(name string)

	// OnSkip, if set, is called for a name marker that has no type line
	OnSkip func(name string, line int)
}

// NewRegistry returns a registry seeded with the known AFNI attribute names
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]struct{}, len(knownAttributes))}
	for _, n := range knownAttributes {
		r.add(n)
	}
	return r
}

func (r *Registry) add(name string) bool {
	if _, ok := r.index[name]; ok {
		return false
	}
	r.index[name] = struct{}{}
	r.names = append(r.names, name)
	return true
}

// Extend registers name and reports whether it was new
func (r *Registry) Extend(name string) bool {
	r.mu.Lock()
	added := r.add(name)
	hook := r.OnExtend
	r.mu.Unlock()
	if added && hook != nil {
		hook(name)
	}
	return added
}

func (r *Registry) skipped(name string, line int) {
	r.mu.Lock()
	hook := r.OnSkip
	r.mu.Unlock()
	if hook != nil {
		hook(name, line)
	}
}

// Contains reports whether name is registered
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[name]
	return ok
}

// Names returns a snapshot of the registered names in order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}
