package sample

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/pullback/density"
)

// Mode selects how a data-driven iteration aggregates weighted residuals
// into a scalar loss, which determines the asymptotic observed law.
type Mode string

const (
	// SWE sums the weighted residuals, scaled by 1/sqrt(n); the reference
	// law is the standard normal.
	SWE Mode = "SWE"
	// MSE averages the squared weighted residuals; the reference law is
	// gamma(n/2) with mean one.
	MSE Mode = "MSE"
	// SSE sums the squared weighted residuals; the reference law is
	// chi-squared with n degrees of freedom.
	SSE Mode = "SSE"
)

// IterationConfig is one record of the iterated data-consistent update.
// Records are append-only; Iterate copies the current record forward.
type IterationConfig struct {
	// Indices selects the output dimensions this iteration acts on;
	// nil means all of them.
	Indices []int
	// DataDriven marks the iteration as comparing against observed data
	// through a scalar loss rather than an observed density.
	DataDriven bool
	// Mode is the loss aggregation of a data-driven iteration.
	Mode Mode
	// Std holds the per-observation noise scales.
	Std []float64
	// Data holds the observations of a data-driven iteration, aligned
	// with the (possibly repeated) Indices.
	Data []float64
	// Observed is the observed law on the iteration's output space.
	Observed density.Distribution
	// Predicted is the pushforward of the initial law, the default being
	// a kernel density estimate over the output samples.
	Predicted density.Distribution
	// Model is the forward map of this iteration, used to evaluate
	// updated densities at new input points.
	Model Model
}

func defaultIteration() IterationConfig {
	return IterationConfig{Mode: SWE}
}

func (c IterationConfig) copy() IterationConfig {
	out := c
	out.Indices = copyInts(c.Indices)
	out.Std = copyFloats(c.Std)
	out.Data = copyFloats(c.Data)
	return out
}

// Iteration returns the current iteration index.
func (d *Discretization) Iteration() int { return d.iteration }

// NumIterations returns the number of iteration records.
func (d *Discretization) NumIterations() int { return len(d.iterations) }

// SetIteration moves the cursor to an existing record.
func (d *Discretization) SetIteration(i int) error {
	if i < 0 || i >= len(d.iterations) {
		return &ErrMissingPrerequisite{What: "iteration record"}
	}
	d.iteration = i
	return nil
}

// Iterate appends a new record inheriting the current record's indices,
// mode, noise scales, laws, and model, and moves the cursor to it.
func (d *Discretization) Iterate() {
	next := d.iterations[d.iteration].copy()
	d.iterations = append(d.iterations, next)
	d.iteration = len(d.iterations) - 1
}

// Config returns the record at the given iteration; -1 means the current
// one.
func (d *Discretization) Config(iteration int) (*IterationConfig, error) {
	if iteration == -1 {
		iteration = d.iteration
	}
	if iteration < 0 || iteration >= len(d.iterations) {
		return nil, &ErrMissingPrerequisite{What: "iteration record"}
	}
	return &d.iterations[iteration], nil
}

// SetIndices fixes the output dimensions an iteration acts on. With
// pushforward the predicted law is recomputed immediately.
func (d *Discretization) SetIndices(inds []int, iteration int, pushforward bool) error {
	cfg, err := d.Config(iteration)
	if err != nil {
		return err
	}
	if d.output != nil {
		for _, j := range inds {
			if j < 0 || j >= d.output.Dim() {
				return &ErrDimensionMismatch{Expected: d.output.Dim(), Actual: j}
			}
		}
	}
	cfg.Indices = copyInts(inds)
	if pushforward {
		return d.ComputePushforward(nil, iteration)
	}
	cfg.Predicted = nil
	return nil
}

// Indices returns the output dimensions an iteration acts on, defaulting to
// all of them.
func (d *Discretization) Indices(iteration int) ([]int, error) {
	cfg, err := d.Config(iteration)
	if err != nil {
		return nil, err
	}
	if cfg.Indices != nil {
		return cfg.Indices, nil
	}
	if d.output == nil {
		return nil, &ErrMissingPrerequisite{What: "output sample set"}
	}
	all := make([]int, d.output.Dim())
	for i := range all {
		all[i] = i
	}
	return all, nil
}

// SetStd fixes an iteration's noise scales.
func (d *Discretization) SetStd(std []float64, iteration int) error {
	cfg, err := d.Config(iteration)
	if err != nil {
		return err
	}
	cfg.Std = copyFloats(std)
	return nil
}

// Std returns an iteration's noise scales.
func (d *Discretization) Std(iteration int) ([]float64, error) {
	cfg, err := d.Config(iteration)
	if err != nil {
		return nil, err
	}
	return cfg.Std, nil
}

// ComputePushforward fixes an iteration's predicted law. A nil law defaults
// to a Gaussian kernel density estimate over the iteration's view of the
// output samples: the selected columns, or the scalar loss when the
// iteration is data-driven.
func (d *Discretization) ComputePushforward(dist density.Distribution, iteration int) error {
	cfg, err := d.Config(iteration)
	if err != nil {
		return err
	}
	if dist != nil {
		cfg.Predicted = dist
		return nil
	}
	view, err := d.iterationView(iteration)
	if err != nil {
		return err
	}
	kde, err := density.NewKDE(view, d.rngSource())
	if err != nil {
		return err
	}
	cfg.Predicted = kde
	return nil
}

// iterationView returns each output sample as the iteration sees it: the
// selected columns, or the scalar loss for a data-driven iteration.
func (d *Discretization) iterationView(iteration int) ([][]float64, error) {
	if d.output == nil {
		return nil, &ErrMissingPrerequisite{What: "output sample set"}
	}
	ob := d.output.SampleBase()
	if ob.values == nil {
		return nil, ErrNoValues
	}
	cfg, err := d.Config(iteration)
	if err != nil {
		return nil, err
	}
	if cfg.DataDriven {
		loss, err := d.LossFun(iteration)
		if err != nil {
			return nil, err
		}
		vals := loss(ob.values)
		out := make([][]float64, len(vals))
		for i, v := range vals {
			out[i] = []float64{v}
		}
		return out, nil
	}
	inds, err := d.Indices(iteration)
	if err != nil {
		return nil, err
	}
	return takeColumns(ob.values, inds), nil
}

// SetObservedDistribution fixes an iteration's observed law. A nil law
// defaults to an independent normal with the given location and scale. The
// location falls back to the output set's reference value, then to the
// forward model applied to the input reference value; the scale falls back
// to the iteration's stored noise scales, then to one.
func (d *Discretization) SetObservedDistribution(dist density.Distribution, iteration int, loc, scale []float64) error {
	cfg, err := d.Config(iteration)
	if err != nil {
		return err
	}
	if dist != nil {
		cfg.Observed = dist
		cfg.DataDriven = false
		return nil
	}
	inds, err := d.Indices(iteration)
	if err != nil {
		return err
	}
	if loc == nil {
		ref, err := d.referenceOutput()
		if err != nil {
			return err
		}
		loc = make([]float64, len(inds))
		for i, j := range inds {
			loc[i] = ref[j]
		}
	}
	if len(loc) != len(inds) {
		return &ErrDimensionMismatch{Expected: len(inds), Actual: len(loc)}
	}
	if scale == nil {
		scale = cfg.Std
	}
	if scale == nil {
		scale = make([]float64, len(inds))
		for i := range scale {
			scale[i] = 1
		}
	}
	if len(scale) == 1 && len(inds) > 1 {
		s := scale[0]
		scale = make([]float64, len(inds))
		for i := range scale {
			scale[i] = s
		}
	}
	if len(scale) != len(inds) {
		return &ErrDimensionMismatch{Expected: len(inds), Actual: len(scale)}
	}
	cfg.Observed = density.NewNormal(loc, scale, d.rngSource())
	cfg.Std = copyFloats(scale)
	cfg.DataDriven = false
	return nil
}

// referenceOutput returns the observed reference point in output space: the
// output set's reference value when present, otherwise the forward model
// applied to the input reference value.
func (d *Discretization) referenceOutput() ([]float64, error) {
	if d.output != nil && d.output.SampleBase().reference != nil {
		return d.output.SampleBase().reference, nil
	}
	cfg := d.iterations[d.iteration]
	if cfg.Model != nil && d.input.SampleBase().reference != nil {
		out := cfg.Model([][]float64{d.input.SampleBase().reference})
		return out[0], nil
	}
	return nil, &ErrMissingPrerequisite{What: "output reference value"}
}

// SetModel fixes an iteration's forward map.
func (d *Discretization) SetModel(m Model, iteration int) error {
	cfg, err := d.Config(iteration)
	if err != nil {
		return err
	}
	cfg.Model = m
	return nil
}

// DataDriven switches the current iteration to data-driven mode: the
// iteration's outputs are reduced to a scalar loss against the observations
// and compared with the loss's asymptotic law. The index list is replicated
// when the data length is an exact multiple of it, matching repeated
// observations of the same quantities.
func (d *Discretization) DataDriven(inds []int, data, std []float64) error {
	cfg, err := d.Config(-1)
	if err != nil {
		return err
	}
	if inds == nil {
		if inds, err = d.Indices(-1); err != nil {
			return err
		}
	}
	if data == nil {
		data = cfg.Data
	}
	if data == nil {
		return &ErrMissingPrerequisite{What: "observed data"}
	}
	if len(data)%len(inds) != 0 {
		return &ErrDimensionMismatch{Expected: len(inds), Actual: len(data)}
	}
	if std == nil {
		std = cfg.Std
	}
	if std == nil {
		return &ErrMissingPrerequisite{What: "data noise scales"}
	}
	if len(std) == 1 && len(data) > 1 {
		s := std[0]
		std = make([]float64, len(data))
		for i := range std {
			std[i] = s
		}
	}
	if len(std) != len(data) {
		return &ErrDimensionMismatch{Expected: len(data), Actual: len(std)}
	}

	cfg.Indices = copyInts(inds)
	cfg.Data = copyFloats(data)
	cfg.Std = copyFloats(std)
	cfg.DataDriven = true
	cfg.Observed = lossLaw(cfg.Mode, len(data), d.rngSource())
	if cfg.Observed == nil {
		return &ErrUnsupportedMode{Mode: string(cfg.Mode)}
	}
	return d.ComputePushforward(nil, -1)
}

// lossLaw returns the asymptotic law of the scalar loss over n standard
// residuals.
func lossLaw(mode Mode, n int, src rand.Source) density.Distribution {
	nf := float64(n)
	switch mode {
	case SWE:
		return density.NewNormal([]float64{0}, []float64{1}, src)
	case MSE:
		return density.NewGamma([]float64{nf / 2}, []float64{nf / 2}, src)
	case SSE:
		return density.NewChiSquared([]float64{nf}, src)
	default:
		return nil
	}
}

// LossFun returns the scalar loss of a data-driven iteration as a function
// of raw output rows.
func (d *Discretization) LossFun(iteration int) (func(out [][]float64) []float64, error) {
	cfg, err := d.Config(iteration)
	if err != nil {
		return nil, err
	}
	if cfg.Data == nil {
		return nil, &ErrMissingPrerequisite{What: "observed data"}
	}
	inds, err := d.Indices(iteration)
	if err != nil {
		return nil, err
	}
	repeats := len(cfg.Data) / len(inds)
	cols := make([]int, 0, len(cfg.Data))
	for r := 0; r < repeats; r++ {
		cols = append(cols, inds...)
	}
	data := cfg.Data
	std := cfg.Std
	mode := cfg.Mode
	n := float64(len(data))

	return func(out [][]float64) []float64 {
		loss := make([]float64, len(out))
		for i, row := range out {
			s := 0.0
			for j, col := range cols {
				r := (row[col] - data[j]) / std[j]
				switch mode {
				case SWE:
					s += r
				default:
					s += r * r
				}
			}
			switch mode {
			case SWE:
				loss[i] = s / math.Sqrt(n)
			case MSE:
				loss[i] = s / n
			default:
				loss[i] = s
			}
		}
		return loss
	}, nil
}

// SetDataFromReference fills the current iteration's observations with the
// reference output, repeated to match any existing data length.
func (d *Discretization) SetDataFromReference() error {
	cfg, err := d.Config(-1)
	if err != nil {
		return err
	}
	ref, err := d.referenceOutput()
	if err != nil {
		return err
	}
	inds, err := d.Indices(-1)
	if err != nil {
		return err
	}
	repeats := 1
	if cfg.Data != nil && len(cfg.Data)%len(inds) == 0 {
		repeats = len(cfg.Data) / len(inds)
	}
	data := make([]float64, 0, repeats*len(inds))
	for r := 0; r < repeats; r++ {
		for _, j := range inds {
			data = append(data, ref[j])
		}
	}
	cfg.Data = data
	return nil
}

// SimulateRepeated returns reps noisy repetitions of the reference output on
// the current iteration's indices, using the iteration's noise scales.
func (d *Discretization) SimulateRepeated(reps int) ([]float64, error) {
	cfg, err := d.Config(-1)
	if err != nil {
		return nil, err
	}
	ref, err := d.referenceOutput()
	if err != nil {
		return nil, err
	}
	inds, err := d.Indices(-1)
	if err != nil {
		return nil, err
	}
	std := cfg.Std
	if std == nil {
		std = make([]float64, len(inds))
		for i := range std {
			std[i] = 1
		}
	}
	if len(std) == 1 && len(inds) > 1 {
		s := std[0]
		std = make([]float64, len(inds))
		for i := range std {
			std[i] = s
		}
	}
	rng := d.rng()
	data := make([]float64, 0, reps*len(inds))
	for r := 0; r < reps; r++ {
		for i, j := range inds {
			data = append(data, ref[j]+std[i]*rng.NormFloat64())
		}
	}
	return data, nil
}

// EstimateDataStd estimates per-index noise scales from repeated
// observations. With fewer than two repetitions it falls back to the sample
// standard deviation of the output columns, which conflates model spread
// with noise; the fallback is logged.
func (d *Discretization) EstimateDataStd(data []float64) ([]float64, error) {
	inds, err := d.Indices(-1)
	if err != nil {
		return nil, err
	}
	if len(data)%len(inds) != 0 {
		return nil, &ErrDimensionMismatch{Expected: len(inds), Actual: len(data)}
	}
	repeats := len(data) / len(inds)
	std := make([]float64, len(inds))
	if repeats >= 2 {
		for i := range inds {
			mean := 0.0
			for r := 0; r < repeats; r++ {
				mean += data[r*len(inds)+i]
			}
			mean /= float64(repeats)
			variance := 0.0
			for r := 0; r < repeats; r++ {
				dev := data[r*len(inds)+i] - mean
				variance += dev * dev
			}
			std[i] = math.Sqrt(variance / float64(repeats-1))
		}
		return std, nil
	}

	d.logger.Warn("single observation per index, falling back to output sample spread")
	if d.output == nil {
		return nil, &ErrMissingPrerequisite{What: "output sample set"}
	}
	vals := d.output.SampleBase().values
	if vals == nil {
		return nil, ErrNoValues
	}
	for i, j := range inds {
		mean := 0.0
		for _, row := range vals {
			mean += row[j]
		}
		mean /= float64(len(vals))
		variance := 0.0
		for _, row := range vals {
			dev := row[j] - mean
			variance += dev * dev
		}
		std[i] = math.Sqrt(variance / float64(len(vals)-1))
	}
	return std, nil
}

// IterateByChunks partitions the output dimensions into consecutive groups
// of the given size, one iteration per group. The size must divide the
// output dimension evenly.
func (d *Discretization) IterateByChunks(size int) error {
	if d.output == nil {
		return &ErrMissingPrerequisite{What: "output sample set"}
	}
	dim := d.output.Dim()
	if size < 1 || dim%size != 0 {
		return &ErrDimensionMismatch{Expected: dim, Actual: size}
	}
	groups := make([][]int, 0, dim/size)
	for lo := 0; lo < dim; lo += size {
		g := make([]int, size)
		for i := range g {
			g[i] = lo + i
		}
		groups = append(groups, g)
	}
	return d.IterateByList(groups)
}

// IterateByList assigns each index group to one iteration, creating records
// as needed. The first group configures the current record.
func (d *Discretization) IterateByList(groups [][]int) error {
	for gi, g := range groups {
		if gi > 0 {
			d.Iterate()
		}
		if err := d.SetIndices(g, -1, false); err != nil {
			return err
		}
	}
	return nil
}

// TileBy assigns sliding windows of the given length over the output
// dimensions to consecutive iterations.
func (d *Discretization) TileBy(length int) error {
	if d.output == nil {
		return &ErrMissingPrerequisite{What: "output sample set"}
	}
	dim := d.output.Dim()
	if length < 1 || length > dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: length}
	}
	groups := make([][]int, 0, dim-length+1)
	for lo := 0; lo+length <= dim; lo++ {
		g := make([]int, length)
		for i := range g {
			g[i] = lo + i
		}
		groups = append(groups, g)
	}
	return d.IterateByList(groups)
}

// InitialPDF evaluates the input set's attached law at each input point.
func (d *Discretization) InitialPDF(x [][]float64) ([]float64, error) {
	return d.input.SampleBase().PDF(x)
}

// PredictedPDF evaluates the product of predicted laws over iterations zero
// through upTo at each output point, in log space. upTo of -1 means the
// current iteration. An iteration without a predicted law gets its default
// pushforward computed on the fly, with a warning.
func (d *Discretization) PredictedPDF(x [][]float64, upTo int) ([]float64, error) {
	return d.productPDF(x, upTo, d.predictedLaw)
}

// predictedLaw returns an iteration's predicted law, computing the default
// pushforward on first use.
func (d *Discretization) predictedLaw(it int) (density.Distribution, error) {
	cfg := &d.iterations[it]
	if cfg.Predicted == nil {
		d.logger.Warn("predicted law missing, computing default pushforward",
			"iteration", it)
		if err := d.ComputePushforward(nil, it); err != nil {
			return nil, err
		}
	}
	return cfg.Predicted, nil
}

// ObservedPDF evaluates the product of observed laws over iterations zero
// through upTo at each output point. An iteration without an observed law
// falls back to the standard normal on its view, with a warning.
func (d *Discretization) ObservedPDF(x [][]float64, upTo int) ([]float64, error) {
	return d.productPDF(x, upTo, d.observedLaw)
}

// observedLaw returns an iteration's observed law, falling back to the
// standard normal on the iteration's view.
func (d *Discretization) observedLaw(it int) (density.Distribution, error) {
	cfg := &d.iterations[it]
	if cfg.Observed == nil {
		d.logger.Warn("observed law missing, assuming standard normal",
			"iteration", it)
		dim := 1
		if !cfg.DataDriven {
			inds, err := d.Indices(it)
			if err != nil {
				return nil, err
			}
			dim = len(inds)
		}
		loc := make([]float64, dim)
		scale := make([]float64, dim)
		for i := range scale {
			scale[i] = 1
		}
		cfg.Observed = density.NewNormal(loc, scale, d.rngSource())
	}
	return cfg.Observed, nil
}

func (d *Discretization) productPDF(x [][]float64, upTo int, law func(it int) (density.Distribution, error)) ([]float64, error) {
	if upTo == -1 {
		upTo = d.iteration
	}
	if upTo < 0 || upTo >= len(d.iterations) {
		return nil, &ErrMissingPrerequisite{What: "iteration record"}
	}
	logp := make([]float64, len(x))
	for it := 0; it <= upTo; it++ {
		dist, err := law(it)
		if err != nil {
			return nil, err
		}
		views, err := d.viewPoints(x, it)
		if err != nil {
			return nil, err
		}
		for i, v := range views {
			logp[i] += dist.LogProb(v)
		}
	}
	out := make([]float64, len(logp))
	for i, lp := range logp {
		out[i] = math.Exp(lp)
	}
	return out, nil
}

// viewPoints maps raw output rows to an iteration's view, matching
// iterationView.
func (d *Discretization) viewPoints(x [][]float64, iteration int) ([][]float64, error) {
	cfg := &d.iterations[iteration]
	if cfg.DataDriven {
		loss, err := d.LossFun(iteration)
		if err != nil {
			return nil, err
		}
		vals := loss(x)
		out := make([][]float64, len(vals))
		for i, v := range vals {
			out[i] = []float64{v}
		}
		return out, nil
	}
	inds, err := d.Indices(iteration)
	if err != nil {
		return nil, err
	}
	return takeColumns(x, inds), nil
}

// RatioPDF evaluates the observed-to-predicted density ratio at each output
// point over iterations zero through upTo.
func (d *Discretization) RatioPDF(x [][]float64, upTo int) ([]float64, error) {
	obs, err := d.ObservedPDF(x, upTo)
	if err != nil {
		return nil, err
	}
	pre, err := d.PredictedPDF(x, upTo)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i := range out {
		if pre[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = obs[i] / pre[i]
	}
	return out, nil
}

// NormalizedRatio evaluates the ratio at the given output points and rescales
// it by its maximum, the acceptance-probability form used for rejection
// sampling. With nil x the stored output samples are used.
func (d *Discretization) NormalizedRatio(x [][]float64) ([]float64, error) {
	if x == nil {
		if d.output == nil || d.output.SampleBase().values == nil {
			return nil, &ErrMissingPrerequisite{What: "output sample values"}
		}
		x = d.output.SampleBase().values
	}
	ratio, err := d.RatioPDF(x, -1)
	if err != nil {
		return nil, err
	}
	if len(ratio) == 0 {
		return ratio, nil
	}
	if max := floats.Max(ratio); max > 0 {
		floats.Scale(1/max, ratio)
	}
	return ratio, nil
}

// UpdatedPDF evaluates the data-consistent updated density at input points:
// the initial density times the ratio at the pushed-forward outputs. With
// nil x the stored input and output samples are used; otherwise every
// iteration must carry a forward model to map x.
func (d *Discretization) UpdatedPDF(x [][]float64) ([]float64, error) {
	if x == nil {
		if d.input.SampleBase().values == nil || d.output == nil || d.output.SampleBase().values == nil {
			return nil, ErrNoValues
		}
		initial, err := d.InitialPDF(d.input.SampleBase().values)
		if err != nil {
			return nil, err
		}
		ratio, err := d.RatioPDF(d.output.SampleBase().values, -1)
		if err != nil {
			return nil, err
		}
		for i := range initial {
			initial[i] *= ratio[i]
		}
		return initial, nil
	}

	initial, err := d.InitialPDF(x)
	if err != nil {
		return nil, err
	}
	logRatio := make([]float64, len(x))
	for it := 0; it <= d.iteration; it++ {
		cfg := &d.iterations[it]
		if cfg.Model == nil {
			return nil, &ErrMissingPrerequisite{What: "iteration forward model"}
		}
		obs, err := d.observedLaw(it)
		if err != nil {
			return nil, err
		}
		pre, err := d.predictedLaw(it)
		if err != nil {
			return nil, err
		}
		out := cfg.Model(x)
		views, err := d.viewPoints(out, it)
		if err != nil {
			return nil, err
		}
		for i, v := range views {
			logRatio[i] += obs.LogProb(v) - pre.LogProb(v)
		}
	}
	for i := range initial {
		initial[i] *= math.Exp(logRatio[i])
	}
	return initial, nil
}

func (d *Discretization) rng() *rand.Rand {
	if r := d.input.SampleBase().rng; r != nil {
		return r
	}
	return rand.New(rand.NewSource(rand.Uint64()))
}

func (d *Discretization) rngSource() rand.Source {
	if r := d.input.SampleBase().rng; r != nil {
		return r
	}
	return nil
}
