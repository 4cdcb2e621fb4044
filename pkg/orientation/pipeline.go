package orientation

import (
	"fmt"
	"math"
	"sync"

	"cardiofiber/internal/models"
	"cardiofiber/pkg/artifact"
	"cardiofiber/pkg/config"
	"cardiofiber/pkg/mask"
	"cardiofiber/pkg/tensor"
	"cardiofiber/pkg/visualization"
)

// SliceStatus is the structured outcome of one slice task
type SliceStatus int

const (
	// StatusWritten means the slice's artifacts were computed and written
	StatusWritten SliceStatus = iota

	// StatusSkipped means a complete artifact set already existed
	StatusSkipped

	// StatusFailed means the slice could not be processed
	StatusFailed
)

// SliceResult reports the outcome of processing one Z index
type SliceResult struct {
	// Index is the global slice index
	Index int

	// Status is the task outcome
	Status SliceStatus

	// Err holds the failure when Status is StatusFailed
	Err error
}

// Pipeline owns one orientation-computation invocation: padding bookkeeping,
// center-line geometry, idempotent-resume logic and the parallel dispatch of
// per-slice angle computation.
//
// The run proceeds through fixed stages: resume check, volume and mask
// loading, structure-tensor computation, mask application, padding removal,
// vector normalization, then the slice fan-out. The loaded volume is owned
// by the pipeline for the duration of the run and is not mutated outside it
// except for masked voxels set to zero before the tensor stage; validity is
// tracked in a separate bitmap rather than in the values.
type Pipeline struct {
	cfg    *config.Config
	store  *artifact.Store
	volume VolumeSource
	msk    VolumeSource

	// previews collects the in-memory renderings produced in test mode
	previews []*visualization.Preview
	mu       sync.Mutex
}

// NewPipeline creates a pipeline over the given volume source. maskSource
// may be nil when no mask is configured.
func NewPipeline(cfg *config.Config, volume VolumeSource, maskSource VolumeSource) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  artifact.NewStore(cfg.Output.Dir, cfg.Output.Format, cfg.Output.Type),
		volume: volume,
		msk:    maskSource,
	}
}

// Previews returns the renderings collected during a test-mode run
func (p *Pipeline) Previews() []*visualization.Preview {
	return p.previews
}

// Run processes the slice window [start, end). end <= 0 means the full
// volume. A window whose slices all have complete artifacts is a no-op, so
// interrupted runs recover by simply being re-invoked.
func (p *Pipeline) Run(start, end int) error {
	nImg := p.volume.NumSlices()
	if end <= 0 || end > nImg {
		end = nImg
	}
	if start < 0 || start >= end {
		return fmt.Errorf("invalid slice window [%d,%d)", start, end)
	}

	testMode := p.cfg.Test.Enabled
	withVectors := p.cfg.Output.Vectors

	if !testMode && p.windowDone(start, end, withVectors) {
		fmt.Printf("Slices %d to %d already processed, nothing to do\n", start, end)
		return nil
	}

	// Center-line and center-vector geometry
	mitral := PointFromXYZ(p.cfg.Geometry.MitralValve)
	apex := PointFromXYZ(p.cfg.Geometry.Apex)
	centerLine := InterpolatePoints(mitral, apex, nImg)
	centerVec := CenterVector(mitral, apex, p.cfg.Geometry.Flip)
	fmt.Printf("Center vector: (%.4f, %.4f, %.4f)\n", centerVec[0], centerVec[1], centerVec[2])

	// Padding gives the tensor smoothing kernel valid context at the
	// window boundaries; it is stripped again before any output.
	padStart := int(math.Ceil(p.cfg.Processing.Rho))
	padEnd := padStart
	startPadded, endPadded := start, end

	if testMode {
		if p.cfg.Test.NumSlices > nImg {
			return fmt.Errorf("test slice count %d exceeds volume size %d", p.cfg.Test.NumSlices, nImg)
		}
		startPadded, endPadded = 0, p.cfg.Test.NumSlices
		padStart, padEnd = 0, 0
	} else {
		if padStart > start {
			padStart = start
		}
		if padEnd > nImg-end {
			padEnd = nImg - end
		}
		startPadded = start - padStart
		endPadded = end + padEnd
	}
	fmt.Printf("Padding start, padding end: %d, %d\n", padStart, padEnd)

	fmt.Println("Loading volume...")
	vol, err := p.volume.ReadRange(startPadded, endPadded)
	if err != nil {
		return fmt.Errorf("failed to load volume slices [%d,%d): %v", startPadded, endPadded, err)
	}

	// Voxel validity travels as an explicit bitmap beside the numeric
	// arrays; values never double as invalidity markers inside the pipeline
	valid := models.AllValid(vol.NZ, vol.NY, vol.NX)
	if p.msk != nil {
		fmt.Println("Loading and aligning mask...")
		maskVol, err := p.msk.ReadRange(0, p.msk.NumSlices())
		if err != nil {
			return fmt.Errorf("failed to load mask: %v", err)
		}

		binning := float64(nImg) / float64(maskVol.NZ)
		aligned, err := mask.Align(maskVol, binning, startPadded, endPadded, vol.NZ, vol.NY, vol.NX)
		if err != nil {
			return fmt.Errorf("failed to align mask: %v", err)
		}
		valid = models.FromMask(aligned)

		// Masked voxels contribute zero gradient to the tensor
		for i, ok := range valid.Bits {
			if !ok {
				vol.Data[i] = 0
			}
		}
		fmt.Println("Mask applied to image volume")
	}

	fmt.Println("Calculating structure tensor...")
	builder := tensor.NewBuilder(p.cfg.Processing.Sigma, p.cfg.Processing.Rho)
	builder.Workers = p.cfg.Processing.NumCores
	builder.Analytic = p.cfg.Processing.Analytic

	val, vec, err := builder.Compute(vol)
	if err != nil {
		return fmt.Errorf("structure tensor computation failed: %v", err)
	}

	// Strip the padding from everything before producing output
	vol = vol.SubZ(padStart, vol.NZ-padEnd)
	val = val.SubZ(padStart, val.NZ-padEnd)
	vec = vec.SubZ(padStart, vec.NZ-padEnd)
	valid = valid.SubZ(padStart, valid.NZ-padEnd)

	vec.Normalize()
	vec.AlignZSign()

	globalStart := startPadded + padStart

	fmt.Println("Calculating helix/intrusion angle and fractional anisotropy:")
	return p.dispatchSlices(vol, val, vec, valid, centerLine, centerVec, globalStart, testMode, withVectors)
}

// windowDone reports whether every slice in [start, end) already has a
// complete artifact set
func (p *Pipeline) windowDone(start, end int, withVectors bool) bool {
	for idx := start; idx < end; idx++ {
		if !p.store.Exists(idx, withVectors) {
			return false
		}
	}
	return true
}

// dispatchSlices fans the per-slice angle computation out over a bounded
// worker pool. Every task reads only the shared read-only fields and writes
// only its own artifact paths, so no synchronization is needed beyond the
// result channel.
func (p *Pipeline) dispatchSlices(vol *models.Volume, val *models.EigenField, vec *models.VectorField,
	valid *models.Validity, centerLine []models.Point3, centerVec models.Point3,
	globalStart int, testMode, withVectors bool) error {

	numSlices := vec.NZ
	workers := p.cfg.Processing.NumCores
	if workers > numSlices {
		workers = numSlices
	}
	if testMode {
		// Diagnostic runs stay single-threaded and deterministic
		workers = 1
	}

	tasks := make(chan int)
	results := make(chan SliceResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range tasks {
				results <- p.processSlice(z, vol, val, vec, valid, centerLine, centerVec, globalStart, testMode, withVectors)
			}
		}()
	}

	go func() {
		for z := 0; z < numSlices; z++ {
			tasks <- z
		}
		close(tasks)
		wg.Wait()
		close(results)
	}()

	// Aggregate structured results instead of best-effort-continuing
	completed := 0
	written, skipped := 0, 0
	var failures []SliceResult
	for res := range results {
		completed++
		switch res.Status {
		case StatusWritten:
			written++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failures = append(failures, res)
		}
		progress := float64(completed) / float64(numSlices) * 100
		fmt.Printf("\rProcessing slices: %.1f%% complete", progress)
	}
	fmt.Println()
	fmt.Printf("Slices written: %d, skipped: %d, failed: %d\n", written, skipped, len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d slices failed, first at index %d: %v",
			len(failures), numSlices, failures[0].Index, failures[0].Err)
	}
	return nil
}

// processSlice computes and writes the artifacts of one slice. The slice is
// skipped when its artifact set already exists outside test mode, making the
// whole dispatch idempotent.
//
// Invalid voxels are masked out only here, at the output boundary: the angle
// and vector values of invalid pixels are replaced by NaN for the encoders,
// which persist them as the formats' invalid sentinel.
func (p *Pipeline) processSlice(z int, vol *models.Volume, val *models.EigenField, vec *models.VectorField,
	valid *models.Validity, centerLine []models.Point3, centerVec models.Point3,
	globalStart int, testMode, withVectors bool) SliceResult {

	index := globalStart + z
	if !testMode && p.store.Exists(index, withVectors) {
		return SliceResult{Index: index, Status: StatusSkipped}
	}

	plane := vec.NY * vec.NX
	var vecSlice, valSlice [3][]float32
	for c := 0; c < 3; c++ {
		vecSlice[c] = vec.Comp[c][z*plane : (z+1)*plane]
		valSlice[c] = val.Val[c][z*plane : (z+1)*plane]
	}

	fa := FractionalAnisotropySlice(valSlice)
	rotated := RotateVectorsToAxis(vecSlice, centerVec)
	center := centerLine[index].Round()
	helix, intrusion := HelixTransverseAngles(rotated, vec.NY, vec.NX, center)

	validSlice := valid.Slice(z)
	nan := float32(math.NaN())
	for i, ok := range validSlice {
		if !ok {
			fa[i], helix[i], intrusion[i] = nan, nan, nan
		}
	}

	if testMode {
		preview := visualization.NewPreview(index, vol.SliceData(z), helix, intrusion, fa, vec.NY, vec.NX)
		p.mu.Lock()
		p.previews = append(p.previews, preview)
		p.mu.Unlock()
		return SliceResult{Index: index, Status: StatusWritten}
	}

	if err := p.store.WriteSliceSet(index, helix, intrusion, fa, vec.NY, vec.NX); err != nil {
		return SliceResult{Index: index, Status: StatusFailed, Err: err}
	}
	if withVectors {
		out := vecSlice
		if !allValid(validSlice) {
			for c := 0; c < 3; c++ {
				out[c] = append([]float32(nil), vecSlice[c]...)
				for i, ok := range validSlice {
					if !ok {
						out[c][i] = nan
					}
				}
			}
		}
		if err := p.store.WriteVectorSlice(index, out, vec.NY, vec.NX); err != nil {
			return SliceResult{Index: index, Status: StatusFailed, Err: err}
		}
	}
	return SliceResult{Index: index, Status: StatusWritten}
}

func allValid(bits []bool) bool {
	for _, ok := range bits {
		if !ok {
			return false
		}
	}
	return true
}
