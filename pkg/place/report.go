package place

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"afniplace/internal/version"
)

// Report collects the human-readable progress of one correction run and is
// written out as the run log when the batch finishes. Lines are only ever
// appended.
type Report struct {
	mu    sync.Mutex
	id    uuid.UUID
	lines []string
	log   logrus.FieldLogger

	// Echo, if set, receives every line as it is added
	Echo io.Writer
}

// NewReport creates an empty report with a fresh run id. Lines are mirrored
// to log at Info level when log is not nil.
func NewReport(log logrus.FieldLogger) *Report {
	return &Report{id: uuid.New(), log: log}
}

// ID is the run identifier written in the log header
func (r *Report) ID() uuid.UUID {
	return r.id
}

// Printf appends one formatted line
func (r *Report) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)

	r.mu.Lock()
	r.lines = append(r.lines, line)
	echo := r.Echo
	r.mu.Unlock()

	if r.log != nil {
		r.log.WithField("run", r.id.String()).Info(strings.TrimSpace(line))
	}
	if echo != nil {
		fmt.Fprintln(echo, line)
	}
}

// Lines returns a copy of everything reported so far
func (r *Report) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Header returns the two comment lines that open a written log
func (r *Report) Header(now time.Time) string {
	return fmt.Sprintf("#PLACE correction %s (run %s)\n#This log was automatically generated on %s GMT\n",
		version.String(), r.id, now.UTC().Format("2006-01-02 15:04:05"))
}

// WriteFile writes the header and all lines to path, replacing any
// existing file
func (r *Report) WriteFile(path string, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s\n", r.Header(now))
	for _, line := range r.Lines() {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return f.Close()
}
