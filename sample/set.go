// Package sample implements sample sets: finite point clouds that tessellate
// a bounded parameter or data domain into cells carrying volumes,
// probabilities, and densities. Sets come in a closed family of geometry
// variants (Voronoi, Rectangle, Ball, Cartesian) and support single-worker
// and SPMD multi-worker operation through the parallel package.
package sample

import (
	"log/slog"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/exp/rand"

	"github.com/hupe1980/pullback/density"
	"github.com/hupe1980/pullback/parallel"
)

// Set is the capability shared by all sample-set geometries.
type Set interface {
	// Dim returns the dimension of the set's points.
	Dim() int
	// Variant names the geometry, for example "voronoi".
	Variant() string
	// Query maps each query point to its k nearest cells, returning
	// distances and cell indices, both len(x) by k.
	Query(x [][]float64, k int) (dists [][]float64, indices [][]int, err error)
	// AppendValues adds points to the set. Fixed-region geometries
	// reject it.
	AppendValues(vals [][]float64) error
	// EstimateVolume estimates cell volumes from nMC uniform domain draws.
	EstimateVolume(nMC int) error
	// EstimateVolumeEmulated estimates cell volumes from a supplied
	// emulated point cloud.
	EstimateVolumeEmulated(emulated Set) error
	// EstimateVolumeMC assigns the geometry-blind uniform volume 1/N.
	EstimateVolumeMC(localize bool) error
	// Copy returns a deep copy.
	Copy() Set
	// Merge combines two sets over the same domain.
	Merge(other Set) (Set, error)
	// SampleBase exposes the shared per-sample state.
	SampleBase() *Base
}

// Options configures a sample set.
type Options struct {
	// PNorm is the Minkowski exponent of the cell metric.
	PNorm float64
	// Comm is the worker group; Serial when absent.
	Comm parallel.Comm
	// Src seeds the set's random draws; nil uses the global source.
	Src rand.Source
	// Logger receives degradation warnings.
	Logger *slog.Logger
}

// DefaultOptions are the options used by the plain constructors.
var DefaultOptions = Options{
	PNorm: 2,
	Comm:  parallel.Serial{},
}

// Base is the data model shared by every geometry variant: per-sample arrays
// with global and local twins, the domain, and the attached probability law.
type Base struct {
	self Set

	dim    int
	pNorm  float64
	comm   parallel.Comm
	rng    *rand.Rand
	logger *slog.Logger

	domain         Domain
	domainOriginal Domain
	boundingBox    Domain
	reference      []float64

	values         [][]float64
	volumes        []float64
	probabilities  []float64
	densities      []float64
	jacobians      [][][]float64
	errorEstimates [][]float64
	region         []int
	errorID        []int

	valuesLocal         [][]float64
	volumesLocal        []float64
	probabilitiesLocal  []float64
	densitiesLocal      []float64
	jacobiansLocal      [][][]float64
	errorEstimatesLocal [][]float64
	regionLocal         []int
	errorIDLocal        []int
	localIndex          []int

	left, right, width               []float64
	radii, normalizedRadii           []float64
	radiiLocal, normalizedRadiiLocal []float64

	dist density.Distribution

	treeDirty bool
	tree      *nnIndex
}

func newBase(dim int, opt Options) Base {
	if opt.PNorm == 0 {
		opt.PNorm = DefaultOptions.PNorm
	}
	if opt.Comm == nil {
		opt.Comm = parallel.Serial{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	var rng *rand.Rand
	if opt.Src != nil {
		rng = rand.New(opt.Src)
	}
	return Base{
		dim:       dim,
		pNorm:     opt.PNorm,
		comm:      opt.Comm,
		rng:       rng,
		logger:    opt.Logger,
		treeDirty: true,
	}
}

// SampleBase returns the shared per-sample state, satisfying the Set
// interface on every variant through embedding. The name avoids colliding
// with the embedded field, which would shadow a promoted Base method.
func (b *Base) SampleBase() *Base { return b }

// Dim returns the dimension fixed at construction.
func (b *Base) Dim() int { return b.dim }

// PNorm returns the Minkowski exponent of the cell metric.
func (b *Base) PNorm() float64 { return b.pNorm }

// SetPNorm changes the cell metric and invalidates the query index.
func (b *Base) SetPNorm(p float64) {
	b.pNorm = p
	b.treeDirty = true
}

// Comm returns the worker group.
func (b *Base) Comm() parallel.Comm { return b.comm }

// SetComm rebinds the set to a worker group.
func (b *Base) SetComm(c parallel.Comm) {
	if c == nil {
		c = parallel.Serial{}
	}
	b.comm = c
}

// Logger returns the warning logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Source derives a child random source from the set's own, nil when the set
// draws from the global source.
func (b *Base) Source() rand.Source {
	if b.rng == nil {
		return nil
	}
	return rand.NewSource(b.rng.Uint64())
}

// Domain returns the set's domain, nil when unset.
func (b *Base) Domain() Domain { return b.domain }

// SetDomain fixes the bounded box the set tessellates.
func (b *Base) SetDomain(d Domain) error {
	if len(d) != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: len(d)}
	}
	b.domain = d.Copy()
	return nil
}

// Reference returns the reference point, nil when unset.
func (b *Base) Reference() []float64 { return b.reference }

// SetReference fixes the reference point used for observed-data inference.
func (b *Base) SetReference(x []float64) error {
	if len(x) != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: len(x)}
	}
	b.reference = append([]float64(nil), x...)
	return nil
}

// Values returns the global point array, one row per sample.
func (b *Base) Values() [][]float64 { return b.values }

// ValuesLocal returns this worker's shard of the point array.
func (b *Base) ValuesLocal() [][]float64 { return b.valuesLocal }

// SetValues replaces the global point array. Rows of the wrong width are
// rejected.
func (b *Base) SetValues(vals [][]float64) error {
	fixed, err := b.checkShape(vals)
	if err != nil {
		return err
	}
	b.values = fixed
	b.treeDirty = true
	return nil
}

// SetValuesLocal replaces this worker's shard of the point array.
func (b *Base) SetValuesLocal(vals [][]float64) error {
	fixed, err := b.checkShape(vals)
	if err != nil {
		return err
	}
	b.valuesLocal = fixed
	return nil
}

// checkShape validates the trailing dimension of a point array.
func (b *Base) checkShape(vals [][]float64) ([][]float64, error) {
	for i, row := range vals {
		if len(row) != b.dim {
			return nil, &ErrDimensionMismatch{Expected: b.dim, Actual: len(vals[i])}
		}
	}
	return vals, nil
}

// Volumes returns the global cell volumes.
func (b *Base) Volumes() []float64 { return b.volumes }

// VolumesLocal returns this worker's shard of the cell volumes.
func (b *Base) VolumesLocal() []float64 { return b.volumesLocal }

// SetVolumes replaces the global cell volumes.
func (b *Base) SetVolumes(v []float64) { b.volumes = v }

// SetVolumesLocal replaces this worker's volume shard.
func (b *Base) SetVolumesLocal(v []float64) { b.volumesLocal = v }

// Probabilities returns the global cell probabilities.
func (b *Base) Probabilities() []float64 { return b.probabilities }

// ProbabilitiesLocal returns this worker's probability shard.
func (b *Base) ProbabilitiesLocal() []float64 { return b.probabilitiesLocal }

// SetProbabilities replaces the global cell probabilities.
func (b *Base) SetProbabilities(p []float64) { b.probabilities = p }

// SetProbabilitiesLocal replaces this worker's probability shard.
func (b *Base) SetProbabilitiesLocal(p []float64) { b.probabilitiesLocal = p }

// Densities returns the global cell densities.
func (b *Base) Densities() []float64 { return b.densities }

// DensitiesLocal returns this worker's density shard.
func (b *Base) DensitiesLocal() []float64 { return b.densitiesLocal }

// SetDensities replaces the global cell densities.
func (b *Base) SetDensities(d []float64) { b.densities = d }

// SetDensitiesLocal replaces this worker's density shard.
func (b *Base) SetDensitiesLocal(d []float64) { b.densitiesLocal = d }

// Jacobians returns the global per-sample Jacobian blocks.
func (b *Base) Jacobians() [][][]float64 { return b.jacobians }

// JacobiansLocal returns this worker's Jacobian shard.
func (b *Base) JacobiansLocal() [][][]float64 { return b.jacobiansLocal }

// SetJacobians replaces the global Jacobian blocks. Each block must have
// trailing dimension equal to the set's dimension.
func (b *Base) SetJacobians(j [][][]float64) error {
	for _, block := range j {
		for _, row := range block {
			if len(row) != b.dim {
				return &ErrDimensionMismatch{Expected: b.dim, Actual: len(row)}
			}
		}
	}
	b.jacobians = j
	return nil
}

// SetJacobiansLocal replaces this worker's Jacobian shard.
func (b *Base) SetJacobiansLocal(j [][][]float64) { b.jacobiansLocal = j }

// ErrorEstimates returns the global per-sample model-error estimates.
func (b *Base) ErrorEstimates() [][]float64 { return b.errorEstimates }

// ErrorEstimatesLocal returns this worker's error-estimate shard.
func (b *Base) ErrorEstimatesLocal() [][]float64 { return b.errorEstimatesLocal }

// SetErrorEstimates replaces the global model-error estimates. Rows are
// shaped like values, one estimate per coordinate.
func (b *Base) SetErrorEstimates(e [][]float64) error {
	fixed, err := b.checkShape(e)
	if err != nil {
		return err
	}
	b.errorEstimates = fixed
	return nil
}

// SetErrorEstimatesLocal replaces this worker's error-estimate shard.
func (b *Base) SetErrorEstimatesLocal(e [][]float64) { b.errorEstimatesLocal = e }

// Region returns the global per-sample region labels.
func (b *Base) Region() []int { return b.region }

// RegionLocal returns this worker's region shard.
func (b *Base) RegionLocal() []int { return b.regionLocal }

// SetRegion replaces the global region labels.
func (b *Base) SetRegion(r []int) { b.region = r }

// SetRegionLocal replaces this worker's region shard.
func (b *Base) SetRegionLocal(r []int) { b.regionLocal = r }

// ErrorID returns the global per-sample error identifiers.
func (b *Base) ErrorID() []int { return b.errorID }

// ErrorIDLocal returns this worker's error-identifier shard.
func (b *Base) ErrorIDLocal() []int { return b.errorIDLocal }

// SetErrorID replaces the global error identifiers.
func (b *Base) SetErrorID(id []int) { b.errorID = id }

// Radii returns the global estimated cell radii.
func (b *Base) Radii() []float64 { return b.radii }

// RadiiLocal returns this worker's cell-radius shard.
func (b *Base) RadiiLocal() []float64 { return b.radiiLocal }

// SetRadii replaces the global estimated cell radii.
func (b *Base) SetRadii(r []float64) { b.radii = r }

// NormalizedRadii returns the global width-normalized cell radii.
func (b *Base) NormalizedRadii() []float64 { return b.normalizedRadii }

// NormalizedRadiiLocal returns this worker's normalized-radius shard.
func (b *Base) NormalizedRadiiLocal() []float64 { return b.normalizedRadiiLocal }

// SetNormalizedRadii replaces the global width-normalized cell radii.
func (b *Base) SetNormalizedRadii(r []float64) { b.normalizedRadii = r }

// LocalIndex returns the global indices owned by this worker.
func (b *Base) LocalIndex() []int { return b.localIndex }

// CheckNum verifies that every populated global array shares the number of
// samples and returns it.
func (b *Base) CheckNum() (int, error) {
	return checkLengths([]lengthCheck{
		{"values", len(b.values), b.values != nil},
		{"volumes", len(b.volumes), b.volumes != nil},
		{"probabilities", len(b.probabilities), b.probabilities != nil},
		{"densities", len(b.densities), b.densities != nil},
		{"jacobians", len(b.jacobians), b.jacobians != nil},
		{"error_estimates", len(b.errorEstimates), b.errorEstimates != nil},
		{"region", len(b.region), b.region != nil},
		{"error_id", len(b.errorID), b.errorID != nil},
	})
}

// CheckNumLocal verifies this worker's shards the same way.
func (b *Base) CheckNumLocal() (int, error) {
	return checkLengths([]lengthCheck{
		{"values_local", len(b.valuesLocal), b.valuesLocal != nil},
		{"volumes_local", len(b.volumesLocal), b.volumesLocal != nil},
		{"probabilities_local", len(b.probabilitiesLocal), b.probabilitiesLocal != nil},
		{"densities_local", len(b.densitiesLocal), b.densitiesLocal != nil},
		{"jacobians_local", len(b.jacobiansLocal), b.jacobiansLocal != nil},
		{"error_estimates_local", len(b.errorEstimatesLocal), b.errorEstimatesLocal != nil},
		{"region_local", len(b.regionLocal), b.regionLocal != nil},
		{"error_id_local", len(b.errorIDLocal), b.errorIDLocal != nil},
	})
}

type lengthCheck struct {
	name string
	n    int
	set  bool
}

func checkLengths(checks []lengthCheck) (int, error) {
	first := -1
	var firstName string
	for _, c := range checks {
		if !c.set {
			continue
		}
		if first == -1 {
			first = c.n
			firstName = c.name
			continue
		}
		if c.n != first {
			return 0, &ErrLengthMismatch{
				Name: firstName, OtherName: c.name,
				Len: first, OtherLen: c.n,
			}
		}
	}
	if first == -1 {
		return 0, ErrNoValues
	}
	return first, nil
}

// AppendValues adds points to the global array.
func (b *Base) AppendValues(vals [][]float64) error {
	fixed, err := b.checkShape(vals)
	if err != nil {
		return err
	}
	b.values = append(b.values, fixed...)
	b.treeDirty = true
	return nil
}

// AppendValuesLocal adds points to this worker's shard.
func (b *Base) AppendValuesLocal(vals [][]float64) error {
	fixed, err := b.checkShape(vals)
	if err != nil {
		return err
	}
	b.valuesLocal = append(b.valuesLocal, fixed...)
	return nil
}

// AppendJacobians adds Jacobian blocks; the sample counts must end up equal.
func (b *Base) AppendJacobians(j [][][]float64) error {
	if b.values == nil {
		return ErrNoValues
	}
	merged := append(append([][][]float64(nil), b.jacobians...), j...)
	if len(merged) != len(b.values) {
		return &ErrLengthMismatch{
			Name: "values", OtherName: "jacobians",
			Len: len(b.values), OtherLen: len(merged),
		}
	}
	b.jacobians = merged
	return nil
}

// AppendErrorEstimates adds model-error rows; counts must end up equal.
func (b *Base) AppendErrorEstimates(e [][]float64) error {
	if b.values == nil {
		return ErrNoValues
	}
	fixed, err := b.checkShape(e)
	if err != nil {
		return err
	}
	merged := append(append([][]float64(nil), b.errorEstimates...), fixed...)
	if len(merged) != len(b.values) {
		return &ErrLengthMismatch{
			Name: "values", OtherName: "error_estimates",
			Len: len(b.values), OtherLen: len(merged),
		}
	}
	b.errorEstimates = merged
	return nil
}

// UpdateBoundingBox recomputes the coordinatewise bounding box of the
// global values.
func (b *Base) UpdateBoundingBox() error {
	if len(b.values) == 0 {
		return ErrNoValues
	}
	box := make(Domain, b.dim)
	for d := 0; d < b.dim; d++ {
		box[d] = [2]float64{math.Inf(1), math.Inf(-1)}
	}
	for _, x := range b.values {
		for d, v := range x {
			if v < box[d][0] {
				box[d][0] = v
			}
			if v > box[d][1] {
				box[d][1] = v
			}
		}
	}
	b.boundingBox = box
	return nil
}

// BoundingBox returns the last computed bounding box, nil when never
// computed.
func (b *Base) BoundingBox() Domain { return b.boundingBox }

// UpdateBounds tiles the domain's per-dimension left edge, right edge, and
// width, used by cell-radius normalization.
func (b *Base) UpdateBounds() error {
	if b.domain == nil {
		return ErrNoDomain
	}
	b.left = make([]float64, b.dim)
	b.right = make([]float64, b.dim)
	b.width = make([]float64, b.dim)
	for d, iv := range b.domain {
		b.left[d] = iv[0]
		b.right[d] = iv[1]
		b.width[d] = iv[1] - iv[0]
	}
	return nil
}

// NormalizeDomain affinely maps the set onto the unit box, remembering the
// original domain. Values, the reference point, and error estimates are
// rescaled per dimension; Jacobian columns are multiplied by the width,
// preserving derivatives under the change of variables.
func (b *Base) NormalizeDomain() error {
	if b.domain == nil {
		return ErrNoDomain
	}
	lo := make([]float64, b.dim)
	w := make([]float64, b.dim)
	for d, iv := range b.domain {
		lo[d] = iv[0]
		w[d] = iv[1] - iv[0]
	}
	scaleRows := func(rows [][]float64) {
		for _, row := range rows {
			for d := range row {
				row[d] = (row[d] - lo[d]) / w[d]
			}
		}
	}
	scaleRows(b.values)
	scaleRows(b.valuesLocal)
	scaleRows(b.errorEstimates)
	scaleRows(b.errorEstimatesLocal)
	if b.reference != nil {
		for d := range b.reference {
			b.reference[d] = (b.reference[d] - lo[d]) / w[d]
		}
	}
	for _, block := range b.jacobians {
		for _, row := range block {
			for d := range row {
				row[d] *= w[d]
			}
		}
	}
	for _, block := range b.jacobiansLocal {
		for _, row := range block {
			for d := range row {
				row[d] *= w[d]
			}
		}
	}
	b.domainOriginal = b.domain
	b.domain = UnitBox(b.dim)
	b.treeDirty = true
	return nil
}

// UndoNormalizeDomain reverses NormalizeDomain.
func (b *Base) UndoNormalizeDomain() error {
	if b.domainOriginal == nil {
		return &ErrMissingPrerequisite{What: "normalized domain"}
	}
	lo := make([]float64, b.dim)
	w := make([]float64, b.dim)
	for d, iv := range b.domainOriginal {
		lo[d] = iv[0]
		w[d] = iv[1] - iv[0]
	}
	unscaleRows := func(rows [][]float64) {
		for _, row := range rows {
			for d := range row {
				row[d] = row[d]*w[d] + lo[d]
			}
		}
	}
	unscaleRows(b.values)
	unscaleRows(b.valuesLocal)
	unscaleRows(b.errorEstimates)
	unscaleRows(b.errorEstimatesLocal)
	if b.reference != nil {
		for d := range b.reference {
			b.reference[d] = b.reference[d]*w[d] + lo[d]
		}
	}
	for _, block := range b.jacobians {
		for _, row := range block {
			for d := range row {
				row[d] /= w[d]
			}
		}
	}
	for _, block := range b.jacobiansLocal {
		for _, row := range block {
			for d := range row {
				row[d] /= w[d]
			}
		}
	}
	b.domain = b.domainOriginal
	b.domainOriginal = nil
	b.treeDirty = true
	return nil
}

// RegionMask returns the bitmap of global sample indices carrying the given
// region label.
func (b *Base) RegionMask(label int) *roaring.Bitmap {
	mask := roaring.New()
	for i, r := range b.region {
		if r == label {
			mask.Add(uint32(i))
		}
	}
	return mask
}

// FilterRegion returns a Voronoi set containing only the samples carrying
// the given region label, with per-sample arrays filtered to match.
func (b *Base) FilterRegion(label int) (*Voronoi, error) {
	if b.region == nil {
		return nil, &ErrMissingPrerequisite{What: "region labels"}
	}
	mask := b.RegionMask(label)
	out := NewVoronoiWithOptions(b.dim, Options{
		PNorm: b.pNorm, Comm: b.comm, Logger: b.logger,
	})
	out.domain = b.domain.Copy()

	take := func(i int) bool { return mask.Contains(uint32(i)) }
	for i, x := range b.values {
		if !take(i) {
			continue
		}
		out.values = append(out.values, append([]float64(nil), x...))
		if b.volumes != nil {
			out.volumes = append(out.volumes, b.volumes[i])
		}
		if b.probabilities != nil {
			out.probabilities = append(out.probabilities, b.probabilities[i])
		}
		if b.densities != nil {
			out.densities = append(out.densities, b.densities[i])
		}
		out.region = append(out.region, label)
	}
	return out, nil
}

// SetDistribution attaches a probability law. A nil law defaults to the
// uniform law on the unit box. When the law exposes finite bounds they
// become the set's domain.
func (b *Base) SetDistribution(d density.Distribution) error {
	if d == nil {
		lo := make([]float64, b.dim)
		hi := make([]float64, b.dim)
		for i := range hi {
			hi[i] = 1
		}
		var src rand.Source
		if b.rng != nil {
			src = rand.NewSource(b.rng.Uint64())
		}
		d = density.NewUniform(lo, hi, src)
	}
	if d.Dim() != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: d.Dim()}
	}
	b.dist = d
	if lo, hi, ok := d.Interval(1); ok {
		dom := make(Domain, b.dim)
		for i := range dom {
			dom[i] = [2]float64{lo[i], hi[i]}
		}
		if dom.Finite() {
			b.domain = dom
		}
	}
	return nil
}

// Distribution returns the attached law, nil when absent.
func (b *Base) Distribution() density.Distribution { return b.dist }

// PDF evaluates the attached law at each point.
func (b *Base) PDF(x [][]float64) ([]float64, error) {
	if b.dist == nil {
		return nil, &ErrMissingPrerequisite{What: "distribution"}
	}
	out := make([]float64, len(x))
	for i, p := range x {
		if len(p) != b.dim {
			return nil, &ErrDimensionMismatch{Expected: b.dim, Actual: len(p)}
		}
		out[i] = b.dist.Prob(p)
	}
	return out, nil
}

// CDF evaluates the attached law's CDF at each point.
func (b *Base) CDF(x [][]float64) ([]float64, error) {
	if b.dist == nil {
		return nil, &ErrMissingPrerequisite{What: "distribution"}
	}
	out := make([]float64, len(x))
	for i, p := range x {
		if len(p) != b.dim {
			return nil, &ErrDimensionMismatch{Expected: b.dim, Actual: len(p)}
		}
		out[i] = b.dist.CDF(p)
	}
	return out, nil
}

// Rvs draws n points from the attached law.
func (b *Base) Rvs(n int) ([][]float64, error) {
	if b.dist == nil {
		return nil, &ErrMissingPrerequisite{What: "distribution"}
	}
	return b.dist.Rand(n), nil
}

// GenerateSamples draws n points from the attached law, each worker drawing
// its contiguous share. With globalize the global array is synchronized.
func (b *Base) GenerateSamples(n int, globalize bool) error {
	if b.dist == nil {
		return &ErrMissingPrerequisite{What: "distribution"}
	}
	share := parallel.ShareCount(n, b.comm.Size(), b.comm.Rank())
	b.valuesLocal = b.dist.Rand(share)
	b.localIndex = nil
	if globalize {
		b.LocalToGlobal()
	}
	return nil
}

// EstimateProbabilityMC assigns the uniform probability 1/N to every cell,
// the Monte Carlo estimate for samples drawn from the law itself. With
// localize the local shard is refreshed from the global array.
func (b *Base) EstimateProbabilityMC(localize bool) error {
	n, err := b.CheckNum()
	if err != nil {
		return err
	}
	b.probabilities = uniformWeights(n)
	if localize {
		b.GlobalToLocal()
	}
	return nil
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// trim keeps the first cnum entries of every populated global array and
// clears the local shards.
func (b *Base) trim(cnum int) {
	if b.values != nil && len(b.values) > cnum {
		b.values = b.values[:cnum]
	}
	if b.volumes != nil && len(b.volumes) > cnum {
		b.volumes = b.volumes[:cnum]
	}
	if b.probabilities != nil && len(b.probabilities) > cnum {
		b.probabilities = b.probabilities[:cnum]
	}
	if b.densities != nil && len(b.densities) > cnum {
		b.densities = b.densities[:cnum]
	}
	if b.jacobians != nil && len(b.jacobians) > cnum {
		b.jacobians = b.jacobians[:cnum]
	}
	if b.errorEstimates != nil && len(b.errorEstimates) > cnum {
		b.errorEstimates = b.errorEstimates[:cnum]
	}
	if b.region != nil && len(b.region) > cnum {
		b.region = b.region[:cnum]
	}
	if b.errorID != nil && len(b.errorID) > cnum {
		b.errorID = b.errorID[:cnum]
	}
	b.clearLocal()
	b.treeDirty = true
}

func (b *Base) clearLocal() {
	b.valuesLocal = nil
	b.volumesLocal = nil
	b.probabilitiesLocal = nil
	b.densitiesLocal = nil
	b.jacobiansLocal = nil
	b.errorEstimatesLocal = nil
	b.regionLocal = nil
	b.errorIDLocal = nil
	b.localIndex = nil
	b.radiiLocal = nil
	b.normalizedRadiiLocal = nil
}

// Clip returns a copy keeping only the first cnum samples.
func Clip(s Set, cnum int) Set {
	out := s.Copy()
	out.SampleBase().trim(cnum)
	return out
}

// copyInto deep-copies the base state into dst, which must share the
// dimension. dst.self is left untouched.
func (b *Base) copyInto(dst *Base) {
	dst.dim = b.dim
	dst.pNorm = b.pNorm
	dst.comm = b.comm
	dst.rng = b.rng
	dst.logger = b.logger
	dst.domain = b.domain.Copy()
	dst.domainOriginal = b.domainOriginal.Copy()
	dst.boundingBox = b.boundingBox.Copy()
	dst.reference = append([]float64(nil), b.reference...)
	dst.values = copyRows(b.values)
	dst.valuesLocal = copyRows(b.valuesLocal)
	dst.volumes = copyFloats(b.volumes)
	dst.volumesLocal = copyFloats(b.volumesLocal)
	dst.probabilities = copyFloats(b.probabilities)
	dst.probabilitiesLocal = copyFloats(b.probabilitiesLocal)
	dst.densities = copyFloats(b.densities)
	dst.densitiesLocal = copyFloats(b.densitiesLocal)
	dst.jacobians = copyBlocks(b.jacobians)
	dst.jacobiansLocal = copyBlocks(b.jacobiansLocal)
	dst.errorEstimates = copyRows(b.errorEstimates)
	dst.errorEstimatesLocal = copyRows(b.errorEstimatesLocal)
	dst.region = copyInts(b.region)
	dst.regionLocal = copyInts(b.regionLocal)
	dst.errorID = copyInts(b.errorID)
	dst.errorIDLocal = copyInts(b.errorIDLocal)
	dst.localIndex = copyInts(b.localIndex)
	dst.left = copyFloats(b.left)
	dst.right = copyFloats(b.right)
	dst.width = copyFloats(b.width)
	dst.radii = copyFloats(b.radii)
	dst.radiiLocal = copyFloats(b.radiiLocal)
	dst.normalizedRadii = copyFloats(b.normalizedRadii)
	dst.normalizedRadiiLocal = copyFloats(b.normalizedRadiiLocal)
	dst.dist = b.dist
	dst.treeDirty = true
}

func copyFloats(x []float64) []float64 {
	if x == nil {
		return nil
	}
	return append([]float64(nil), x...)
}

func copyInts(x []int) []int {
	if x == nil {
		return nil
	}
	return append([]int(nil), x...)
}

func copyRows(x [][]float64) [][]float64 {
	if x == nil {
		return nil
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func copyBlocks(x [][][]float64) [][][]float64 {
	if x == nil {
		return nil
	}
	out := make([][][]float64, len(x))
	for i, block := range x {
		out[i] = copyRows(block)
	}
	return out
}
