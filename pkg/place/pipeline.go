package place

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"afniplace/internal/models"
	"afniplace/pkg/afni"
	"afniplace/pkg/unwarp"
)

// Params holds the configuration for a correction run
type Params struct {
	// NumCores limits how many timepoints are unwarped at once
	NumCores int

	// OutputDir receives corrected datasets and the run log. Empty means
	// the directory chosen by the Selector.
	OutputDir string

	// Suffix is inserted before the view of every output name
	Suffix string

	// LogName is the run log file name inside OutputDir
	LogName string
}

// Result records what happened to one input dataset
type Result struct {
	Input  string
	Output string

	// Skipped is set for geometry mismatches and output collisions
	Skipped bool
	Err     error
}

// Summary totals a batch
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Results   []Result
	Elapsed   time.Duration
}

// Pipeline applies one unwarp operator to a list of datasets
type Pipeline struct {
	params *Params
	log    logrus.FieldLogger
	report *Report
}

// NewPipeline creates a pipeline. A nil report starts a new one; a nil log
// uses the logrus standard logger.
func NewPipeline(params *Params, log logrus.FieldLogger, report *Report) *Pipeline {
	p := *params
	if p.NumCores < 1 {
		p.NumCores = runtime.NumCPU()
	}
	if p.Suffix == "" {
		p.Suffix = "_pc"
	}
	if p.LogName == "" {
		p.LogName = "PLACE_log.txt"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if report == nil {
		report = NewReport(log)
	}
	return &Pipeline{params: &p, log: log, report: report}
}

// Report returns the run report
func (p *Pipeline) Report() *Report {
	return p.report
}

// BuildOperator loads the displacement map for scan and builds its
// unwarp operator, reporting how long construction took
func (p *Pipeline) BuildOperator(dmapPath string, scan models.ScanParams) (*unwarp.Operator, error) {
	dm, err := unwarp.LoadDisplacementMap(dmapPath, scan)
	if err != nil {
		return nil, err
	}
	p.report.Printf("Dimensions of dmap are: %d", len(dm.Data))
	p.report.Printf("Dimensions of reshaped dmap are: (%d, %d, %d)", dm.Read, dm.Phase, dm.Slice)

	start := time.Now()
	op, err := unwarp.Build(dm, float64(scan.Expansion))
	if err != nil {
		return nil, fmt.Errorf("failed to build unwarp operator: %w", err)
	}
	p.report.Printf("makeunwarpmatrix: Generating unwarp sparse matrix took %0.2f seconds", time.Since(start).Seconds())

	r, c := op.Dims()
	p.log.WithFields(logrus.Fields{
		"rows":     r,
		"cols":     c,
		"nnz":      op.NNZ(),
		"padded":   op.PaddedSize(),
		"duration": time.Since(start),
	}).Debug("Unwarp operator ready")
	p.report.Printf("Unwarp sparse matrix is %dx%d with %d non-zero entries", r, c, op.NNZ())
	return op, nil
}

// Correct unwarps every timepoint of ds in place and crops the result to the
// scan's read and phase extent. The dataset is unchanged on error.
func (p *Pipeline) Correct(ctx context.Context, ds *afni.Dataset, scan models.ScanParams, op *unwarp.Operator) error {
	if ds.Info.Dims != scan.Dims() {
		return models.GeometryMismatch(ds.Path, ds.Info.Dims, scan.Dims())
	}

	src := ds.Volume
	out := &afni.Volume{NX: src.NX, NY: src.NY, NZ: src.NZ, NT: src.NT, DType: src.DType}
	out.BrickTypes = append([]afni.DType(nil), src.BrickTypes...)
	out.Real = make([]float64, src.Len())
	if src.Imag != nil {
		out.Imag = make([]float64, src.Len())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.NumCores)
	for t := 0; t < src.NT; t++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dtype := src.BrickTypes[t]
			re, im := src.Brick(t)
			dstRe, dstIm := out.Brick(t)

			corrected, err := op.Apply(re, src.NX, src.NY, src.NZ)
			if err != nil {
				return fmt.Errorf("failed to unwarp timepoint %d: %w", t, err)
			}
			for i, v := range corrected {
				dstRe[i] = dtype.Cast(v)
			}

			if im != nil {
				corrected, err = op.Apply(im, src.NX, src.NY, src.NZ)
				if err != nil {
					return fmt.Errorf("failed to unwarp timepoint %d: %w", t, err)
				}
				copy(dstIm, corrected)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cropped, err := out.Crop(scan.ReadCount, scan.PhaseCount)
	if err != nil {
		return fmt.Errorf("failed to crop corrected volume: %w", err)
	}
	ds.Volume = cropped
	return nil
}

// Run corrects every dataset in paths with op and saves the results in the
// output directory. Per-dataset failures are recorded in the summary and do
// not stop the batch; only cancellation of ctx does.
func (p *Pipeline) Run(ctx context.Context, loader *afni.Loader, paths []string, scan models.ScanParams, op *unwarp.Operator) (*Summary, error) {
	summary := &Summary{}
	start := time.Now()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		res := p.process(ctx, loader, path, scan, op)
		switch {
		case res.Err == nil:
			summary.Processed++
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Failed++
			p.report.Printf("PLACE correction failed for %s: %v", path, res.Err)
		}
		summary.Results = append(summary.Results, res)
	}

	summary.Elapsed = time.Since(start)
	p.report.Printf("")
	p.report.Printf("Finished converting %d scans (%d skipped, %d failed)", summary.Processed, summary.Skipped, summary.Failed)
	p.report.Printf("Entire conversion took: %0.2f seconds", summary.Elapsed.Seconds())
	return summary, nil
}

func (p *Pipeline) process(ctx context.Context, loader *afni.Loader, path string, scan models.ScanParams, op *unwarp.Operator) Result {
	res := Result{Input: path}
	p.report.Printf("")
	p.report.Printf("Processing scan: %s", path)

	ds, err := loader.Load(path)
	if err != nil {
		res.Err = err
		return res
	}
	v := ds.Volume
	p.report.Printf("Data matrix shape is: (%d, %d, %d, %d) %s, %s", v.NX, v.NY, v.NZ, v.NT,
		ds.Info.DType, humanize.Bytes(uint64(v.ByteSize())))

	if ds.Info.Dims != scan.Dims() {
		res.Err = models.GeometryMismatch(path, ds.Info.Dims, scan.Dims())
		res.Skipped = true
		p.report.Printf("Your scan: %s does not match the dimensions of your ParScan parameters", path)
		p.report.Printf("Skipping PLACE correction of: %s", path)
		return res
	}
	if scan.Repetitions != v.NT {
		p.log.WithFields(logrus.Fields{"path": path, "reps": scan.Repetitions, "timepoints": v.NT}).
			Warn("ParScan repetitions differ from the dataset's sub-brick count")
	}

	outBase, err := p.outputName(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = outBase
	if err := checkCollision(outBase); err != nil {
		res.Err = err
		res.Skipped = true
		p.report.Printf("You already have a file of the same name as: %s", outBase)
		p.report.Printf("PLACE correction was NOT done for: %s", path)
		return res
	}

	p.reportStats("before", v.Real)
	if err := p.Correct(ctx, ds, scan, op); err != nil {
		res.Err = err
		res.Skipped = errors.Is(err, models.ErrGeometryMismatch)
		return res
	}
	p.reportStats("after", ds.Volume.Real)

	if ds.ByteOrderDrift() {
		p.log.WithFields(logrus.Fields{"path": path, "order": afni.HostOrder()}).
			Info("Header byte order differs from this machine, BYTEORDER_STRING will be rewritten")
	}
	if err := ds.Save(outBase); err != nil {
		res.Err = err
		return res
	}
	p.report.Printf("New PLACE corrected file will be saved to: %s (%s)", outBase, humanize.Bytes(uint64(ds.Volume.ByteSize())))
	p.report.Printf("Finished place correcting: %s", path)
	return res
}

func (p *Pipeline) outputName(path string) (string, error) {
	dir := p.params.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return OutputName(path, dir, p.params.Suffix)
}

func (p *Pipeline) reportStats(stage string, data []float64) {
	if len(data) == 0 {
		return
	}
	mean, std := stat.MeanStdDev(data, nil)
	p.report.Printf("Voxel statistics %s correction: mean %.4g, std %.4g, range [%g, %g]",
		stage, mean, std, floats.Min(data), floats.Max(data))
}

// RunFromSelector gathers the run inputs from sel, validates them, builds
// the operator and corrects every dataset. The run log is written to the
// output directory even when the batch is interrupted.
func (p *Pipeline) RunFromSelector(ctx context.Context, sel Selector, loader *afni.Loader) (*Summary, error) {
	s, err := Select(sel)
	if err != nil {
		return nil, err
	}
	if p.params.OutputDir != "" {
		s.OutputDir = p.params.OutputDir
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection: %w", err)
	}
	p.params.OutputDir = s.OutputDir

	p.report.Printf("Everything checks out, you selected the following:")
	p.report.Printf("Dataset list: %v", s.Inputs)
	p.report.Printf("Dmap Location: %s", s.Dmap)
	p.report.Printf("ParScan Location: %s", s.ParScan)
	p.report.Printf("Save Directory: %s", s.OutputDir)

	scan, err := LoadScanParams(s.ParScan)
	if err != nil {
		return nil, err
	}
	p.report.Printf("ParScan values of interest are (xres, yres, zres, reps, expansion): %s", scan)

	op, err := p.BuildOperator(s.Dmap, scan)
	if err != nil {
		return nil, err
	}

	summary, runErr := p.Run(ctx, loader, s.Inputs, scan, op)

	logPath := filepath.Join(s.OutputDir, p.params.LogName)
	if err := p.report.WriteFile(logPath, time.Now()); err != nil {
		return summary, err
	}
	p.log.WithField("path", logPath).Info("Run log written")
	return summary, runErr
}
