package sample

import (
	"log/slog"

	"github.com/hupe1980/pullback/parallel"
)

// Model is a forward map from input-space points to output-space points,
// one row per point.
type Model func(x [][]float64) [][]float64

// Discretization ties an input sample set to the output set produced by a
// forward model, optionally with emulated clouds for volume emulation and an
// output-probability set, and carries the iteration records of the
// data-consistent update.
type Discretization struct {
	input             Set
	output            Set
	emulatedInput     Set
	emulatedOutput    Set
	outputProbability Set

	ioPtr              []int
	ioPtrLocal         []int
	emulatedIIPtr      []int
	emulatedIIPtrLocal []int
	emulatedOOPtr      []int
	emulatedOOPtrLocal []int

	iteration  int
	iterations []IterationConfig

	comm   parallel.Comm
	logger *slog.Logger
}

// NewDiscretization pairs an input set with its forward-model output set.
// The sample counts must agree when both sets carry values.
func NewDiscretization(input, output Set) (*Discretization, error) {
	if input == nil {
		return nil, &ErrMissingPrerequisite{What: "input sample set"}
	}
	d := &Discretization{
		input:      input,
		output:     output,
		comm:       input.SampleBase().comm,
		logger:     input.SampleBase().logger,
		iterations: []IterationConfig{defaultIteration()},
	}
	if output != nil {
		if _, err := d.CheckNums(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// CheckNums verifies that the input and output sets agree on the number of
// samples and returns it.
func (d *Discretization) CheckNums() (int, error) {
	nIn, err := d.input.SampleBase().CheckNum()
	if err != nil {
		return 0, err
	}
	if d.output == nil {
		return nIn, nil
	}
	nOut, err := d.output.SampleBase().CheckNum()
	if err != nil {
		return 0, err
	}
	if nIn != nOut {
		return 0, &ErrLengthMismatch{
			Name: "input", OtherName: "output",
			Len: nIn, OtherLen: nOut,
		}
	}
	return nIn, nil
}

// Input returns the input sample set.
func (d *Discretization) Input() Set { return d.input }

// Output returns the output sample set, nil when absent.
func (d *Discretization) Output() Set { return d.output }

// SetInput replaces the input sample set.
func (d *Discretization) SetInput(s Set) { d.input = s }

// SetOutput replaces the output sample set.
func (d *Discretization) SetOutput(s Set) { d.output = s }

// EmulatedInput returns the emulated input cloud, nil when absent.
func (d *Discretization) EmulatedInput() Set { return d.emulatedInput }

// SetEmulatedInput attaches an emulated input cloud and invalidates its
// pointer.
func (d *Discretization) SetEmulatedInput(s Set) {
	d.emulatedInput = s
	d.emulatedIIPtr = nil
	d.emulatedIIPtrLocal = nil
}

// EmulatedOutput returns the emulated output cloud, nil when absent.
func (d *Discretization) EmulatedOutput() Set { return d.emulatedOutput }

// SetEmulatedOutput attaches an emulated output cloud and invalidates its
// pointer.
func (d *Discretization) SetEmulatedOutput(s Set) {
	d.emulatedOutput = s
	d.emulatedOOPtr = nil
	d.emulatedOOPtrLocal = nil
}

// OutputProbability returns the output-probability set, nil when absent.
func (d *Discretization) OutputProbability() Set { return d.outputProbability }

// SetOutputProbability attaches the output-probability set and invalidates
// the pointers into it.
func (d *Discretization) SetOutputProbability(s Set) {
	d.outputProbability = s
	d.ioPtr = nil
	d.ioPtrLocal = nil
	d.emulatedOOPtr = nil
	d.emulatedOOPtrLocal = nil
}

// SetIOPtr maps each local output sample to its cell in the
// output-probability set. With globalize the global pointer is gathered.
func (d *Discretization) SetIOPtr(globalize bool) error {
	if d.outputProbability == nil {
		return &ErrMissingPrerequisite{What: "output probability set"}
	}
	if d.output == nil {
		return &ErrMissingPrerequisite{What: "output sample set"}
	}
	ob := d.output.SampleBase()
	if ob.valuesLocal == nil {
		ob.GlobalToLocal()
	}
	ptr, err := queryFirst(d.outputProbability, ob.valuesLocal)
	if err != nil {
		return err
	}
	d.ioPtrLocal = ptr
	if globalize {
		d.ioPtr = parallel.Gather(d.comm, d.ioPtrLocal)
	}
	return nil
}

// IOPtr returns the global output-to-probability pointer.
func (d *Discretization) IOPtr() []int { return d.ioPtr }

// IOPtrLocal returns this worker's shard of the pointer.
func (d *Discretization) IOPtrLocal() []int { return d.ioPtrLocal }

// SetEmulatedIIPtr maps each local emulated input point to its input cell.
func (d *Discretization) SetEmulatedIIPtr(globalize bool) error {
	if d.emulatedInput == nil {
		return &ErrMissingPrerequisite{What: "emulated input set"}
	}
	eb := d.emulatedInput.SampleBase()
	if eb.valuesLocal == nil {
		eb.GlobalToLocal()
	}
	ptr, err := queryFirst(d.input, eb.valuesLocal)
	if err != nil {
		return err
	}
	d.emulatedIIPtrLocal = ptr
	if globalize {
		d.emulatedIIPtr = parallel.Gather(d.comm, d.emulatedIIPtrLocal)
	}
	return nil
}

// EmulatedIIPtr returns the global emulated-input pointer.
func (d *Discretization) EmulatedIIPtr() []int { return d.emulatedIIPtr }

// EmulatedIIPtrLocal returns this worker's shard of the pointer.
func (d *Discretization) EmulatedIIPtrLocal() []int { return d.emulatedIIPtrLocal }

// SetEmulatedOOPtr maps each local emulated output point to its cell in the
// output-probability set.
func (d *Discretization) SetEmulatedOOPtr(globalize bool) error {
	if d.emulatedOutput == nil {
		return &ErrMissingPrerequisite{What: "emulated output set"}
	}
	if d.outputProbability == nil {
		return &ErrMissingPrerequisite{What: "output probability set"}
	}
	eb := d.emulatedOutput.SampleBase()
	if eb.valuesLocal == nil {
		eb.GlobalToLocal()
	}
	ptr, err := queryFirst(d.outputProbability, eb.valuesLocal)
	if err != nil {
		return err
	}
	d.emulatedOOPtrLocal = ptr
	if globalize {
		d.emulatedOOPtr = parallel.Gather(d.comm, d.emulatedOOPtrLocal)
	}
	return nil
}

// EmulatedOOPtr returns the global emulated-output pointer.
func (d *Discretization) EmulatedOOPtr() []int { return d.emulatedOOPtr }

// EmulatedOOPtrLocal returns this worker's shard of the pointer.
func (d *Discretization) EmulatedOOPtrLocal() []int { return d.emulatedOOPtrLocal }

// GlobalizePointers gathers every populated local pointer.
func (d *Discretization) GlobalizePointers() {
	if d.ioPtrLocal != nil {
		d.ioPtr = parallel.Gather(d.comm, d.ioPtrLocal)
	}
	if d.emulatedIIPtrLocal != nil {
		d.emulatedIIPtr = parallel.Gather(d.comm, d.emulatedIIPtrLocal)
	}
	if d.emulatedOOPtrLocal != nil {
		d.emulatedOOPtr = parallel.Gather(d.comm, d.emulatedOOPtrLocal)
	}
}

// LocalToGlobal synchronizes every attached set.
func (d *Discretization) LocalToGlobal() {
	for _, s := range d.sets() {
		if s != nil {
			s.SampleBase().LocalToGlobal()
		}
	}
	d.GlobalizePointers()
}

func (d *Discretization) sets() []Set {
	return []Set{d.input, d.output, d.emulatedInput, d.emulatedOutput, d.outputProbability}
}

// EstimateInputVolumeEmulated estimates the input set's cell volumes from
// the emulated input cloud.
func (d *Discretization) EstimateInputVolumeEmulated() error {
	if d.emulatedInput == nil {
		return &ErrMissingPrerequisite{What: "emulated input set"}
	}
	return d.input.EstimateVolumeEmulated(d.emulatedInput)
}

// EstimateOutputVolumeEmulated estimates the output set's cell volumes from
// the emulated output cloud.
func (d *Discretization) EstimateOutputVolumeEmulated() error {
	if d.emulatedOutput == nil {
		return &ErrMissingPrerequisite{What: "emulated output set"}
	}
	if d.output == nil {
		return &ErrMissingPrerequisite{What: "output sample set"}
	}
	return d.output.EstimateVolumeEmulated(d.emulatedOutput)
}

// Copy returns a deep copy of the discretization and every attached set.
func (d *Discretization) Copy() *Discretization {
	out := &Discretization{
		comm:      d.comm,
		logger:    d.logger,
		iteration: d.iteration,
	}
	if d.input != nil {
		out.input = d.input.Copy()
	}
	if d.output != nil {
		out.output = d.output.Copy()
	}
	if d.emulatedInput != nil {
		out.emulatedInput = d.emulatedInput.Copy()
	}
	if d.emulatedOutput != nil {
		out.emulatedOutput = d.emulatedOutput.Copy()
	}
	if d.outputProbability != nil {
		out.outputProbability = d.outputProbability.Copy()
	}
	out.ioPtr = copyInts(d.ioPtr)
	out.ioPtrLocal = copyInts(d.ioPtrLocal)
	out.emulatedIIPtr = copyInts(d.emulatedIIPtr)
	out.emulatedIIPtrLocal = copyInts(d.emulatedIIPtrLocal)
	out.emulatedOOPtr = copyInts(d.emulatedOOPtr)
	out.emulatedOOPtrLocal = copyInts(d.emulatedOOPtrLocal)
	out.iterations = make([]IterationConfig, len(d.iterations))
	for i := range d.iterations {
		out.iterations[i] = d.iterations[i].copy()
	}
	return out
}

// Clip returns a copy keeping only the first cnum samples of the input and
// output sets. Pointers are dropped; they refer to the unclipped clouds.
func (d *Discretization) Clip(cnum int) *Discretization {
	out := d.Copy()
	out.input.SampleBase().trim(cnum)
	if out.output != nil {
		out.output.SampleBase().trim(cnum)
	}
	out.ioPtr = nil
	out.ioPtrLocal = nil
	out.emulatedIIPtr = nil
	out.emulatedIIPtrLocal = nil
	out.emulatedOOPtr = nil
	out.emulatedOOPtrLocal = nil
	return out
}

// Merge combines two discretizations set by set.
func (d *Discretization) Merge(other *Discretization) (*Discretization, error) {
	mergedInput, err := d.input.Merge(other.input)
	if err != nil {
		return nil, err
	}
	out := &Discretization{
		input:      mergedInput,
		comm:       d.comm,
		logger:     d.logger,
		iterations: []IterationConfig{defaultIteration()},
	}
	if d.output != nil && other.output != nil {
		if out.output, err = d.output.Merge(other.output); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ChooseOutputs returns a copy whose output set keeps only the given output
// dimensions.
func (d *Discretization) ChooseOutputs(outputs []int) (*Discretization, error) {
	inputs := make([]int, d.input.Dim())
	for i := range inputs {
		inputs[i] = i
	}
	return d.ChooseInputsOutputs(inputs, outputs)
}

// ChooseInputsOutputs returns a copy keeping only the given input and output
// dimensions. Jacobian blocks are sliced on both axes.
func (d *Discretization) ChooseInputsOutputs(inputs, outputs []int) (*Discretization, error) {
	if d.output == nil {
		return nil, &ErrMissingPrerequisite{What: "output sample set"}
	}
	ib := d.input.SampleBase()
	ob := d.output.SampleBase()
	for _, j := range inputs {
		if j < 0 || j >= ib.dim {
			return nil, &ErrDimensionMismatch{Expected: ib.dim, Actual: j}
		}
	}
	for _, j := range outputs {
		if j < 0 || j >= ob.dim {
			return nil, &ErrDimensionMismatch{Expected: ob.dim, Actual: j}
		}
	}

	newInput := NewVoronoiWithOptions(len(inputs), Options{
		PNorm: ib.pNorm, Comm: ib.comm, Logger: ib.logger,
	})
	newInput.values = takeColumns(ib.values, inputs)
	if ib.domain != nil {
		dom := make(Domain, len(inputs))
		for i, j := range inputs {
			dom[i] = ib.domain[j]
		}
		newInput.domain = dom
	}

	newOutput := NewVoronoiWithOptions(len(outputs), Options{
		PNorm: ob.pNorm, Comm: ob.comm, Logger: ob.logger,
	})
	newOutput.values = takeColumns(ob.values, outputs)
	if ob.domain != nil {
		dom := make(Domain, len(outputs))
		for i, j := range outputs {
			dom[i] = ob.domain[j]
		}
		newOutput.domain = dom
	}
	if ob.reference != nil {
		ref := make([]float64, len(outputs))
		for i, j := range outputs {
			ref[i] = ob.reference[j]
		}
		newOutput.reference = ref
	}
	if ib.jacobians != nil {
		blocks := make([][][]float64, len(ib.jacobians))
		for n, block := range ib.jacobians {
			rows := make([][]float64, len(outputs))
			for i, oj := range outputs {
				row := make([]float64, len(inputs))
				for k, ij := range inputs {
					row[k] = block[oj][ij]
				}
				rows[i] = row
			}
			blocks[n] = rows
		}
		newInput.jacobians = blocks
	}
	newInput.GlobalToLocal()
	newOutput.GlobalToLocal()
	return NewDiscretization(newInput, newOutput)
}

func takeColumns(rows [][]float64, cols []int) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		sel := make([]float64, len(cols))
		for k, j := range cols {
			sel[k] = row[j]
		}
		out[i] = sel
	}
	return out
}

// queryFirst returns the nearest-cell index of each point in s.
func queryFirst(s Set, x [][]float64) ([]int, error) {
	_, idx, err := s.Query(x, 1)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(idx))
	for i, row := range idx {
		out[i] = row[0]
	}
	return out, nil
}
