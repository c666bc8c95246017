package persist

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/hupe1980/pullback/parallel"
	"github.com/hupe1980/pullback/sample"
)

// Archive is a named-array container, the unit of persistence. It gob-encodes
// to a single blob compressed with s2.
type Archive struct {
	Floats  map[string][]float64
	Rows    map[string][][]float64
	Blocks  map[string][][][]float64
	Ints    map[string][]int
	Scalars map[string]float64
	Labels  map[string]string
}

// NewArchive returns an empty archive.
func NewArchive() *Archive {
	return &Archive{
		Floats:  make(map[string][]float64),
		Rows:    make(map[string][][]float64),
		Blocks:  make(map[string][][][]float64),
		Ints:    make(map[string][]int),
		Scalars: make(map[string]float64),
		Labels:  make(map[string]string),
	}
}

// Encode serializes the archive to a compressed blob.
func (a *Archive) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("persist: encode archive: %w", err)
	}
	return s2.Encode(nil, buf.Bytes()), nil
}

// DecodeArchive deserializes a blob written by Encode.
func DecodeArchive(data []byte) (*Archive, error) {
	raw, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("persist: decompress archive: %w", err)
	}
	a := NewArchive()
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(a); err != nil {
		return nil, fmt.Errorf("persist: decode archive: %w", err)
	}
	return a, nil
}

// SaveSet writes the set's global arrays to the store under name.
func SaveSet(store Store, name string, s sample.Set) error {
	data, err := setToArchive(s, false).Encode()
	if err != nil {
		return err
	}
	return store.Put(name, data)
}

// LoadSet reconstructs a set saved with SaveSet. The set's comm defaults to
// serial; rebind with SetComm and GlobalToLocal for parallel use. Attached
// probability laws are not persisted.
func LoadSet(store Store, name string) (sample.Set, error) {
	data, err := store.Get(name)
	if err != nil {
		return nil, err
	}
	a, err := DecodeArchive(data)
	if err != nil {
		return nil, err
	}
	return setFromArchive(a)
}

// SaveSetShards writes this worker's shard of the set under
// "proc{rank}_{name}". Every worker in the set's group must call it; the
// shards together hold the full set.
func SaveSetShards(store Store, name string, s sample.Set) error {
	b := s.SampleBase()
	a := setToArchive(s, true)
	a.Scalars["num_shards"] = float64(b.Comm().Size())
	data, err := a.Encode()
	if err != nil {
		return err
	}
	return store.Put(shardName(b.Comm().Rank(), name), data)
}

// LoadSetShards reassembles a set saved with SaveSetShards, concatenating the
// shards in rank order and re-sharding for comm, which may have a different
// worker count than the group that saved.
func LoadSetShards(store Store, name string, comm parallel.Comm) (sample.Set, error) {
	data, err := store.Get(shardName(0, name))
	if err != nil {
		return nil, err
	}
	merged, err := DecodeArchive(data)
	if err != nil {
		return nil, err
	}
	numShards := int(merged.Scalars["num_shards"])
	for rank := 1; rank < numShards; rank++ {
		data, err := store.Get(shardName(rank, name))
		if err != nil {
			return nil, err
		}
		shard, err := DecodeArchive(data)
		if err != nil {
			return nil, err
		}
		merged.appendPerSample(shard)
	}

	s, err := setFromArchive(merged)
	if err != nil {
		return nil, err
	}
	s.SampleBase().SetComm(comm)
	s.SampleBase().GlobalToLocal()
	return s, nil
}

func shardName(rank int, name string) string {
	return fmt.Sprintf("proc%d_%s", rank, name)
}

// perSample lists the archive keys holding one entry per sample; everything
// else is shared metadata taken from the first shard.
var perSampleFloats = []string{"volumes", "probabilities", "densities", "radii", "normalized_radii"}
var perSampleRows = []string{"values", "error_estimates"}
var perSampleInts = []string{"region", "error_id"}
var perSampleBlocks = []string{"jacobians"}

// appendPerSample concatenates the per-sample arrays of another shard onto
// this one, in place.
func (a *Archive) appendPerSample(shard *Archive) {
	for _, key := range perSampleFloats {
		if vals, ok := shard.Floats[key]; ok {
			a.Floats[key] = append(a.Floats[key], vals...)
		}
	}
	for _, key := range perSampleRows {
		if rows, ok := shard.Rows[key]; ok {
			a.Rows[key] = append(a.Rows[key], rows...)
		}
	}
	for _, key := range perSampleInts {
		if vals, ok := shard.Ints[key]; ok {
			a.Ints[key] = append(a.Ints[key], vals...)
		}
	}
	for _, key := range perSampleBlocks {
		if blocks, ok := shard.Blocks[key]; ok {
			a.Blocks[key] = append(a.Blocks[key], blocks...)
		}
	}
}

// setToArchive captures a set's arrays. With local the per-sample arrays are
// this worker's shards; shared metadata is captured either way.
func setToArchive(s sample.Set, local bool) *Archive {
	b := s.SampleBase()
	a := NewArchive()
	a.Labels["variant"] = s.Variant()
	a.Scalars["dim"] = float64(b.Dim())
	a.Scalars["p_norm"] = b.PNorm()

	if dom := b.Domain(); dom != nil {
		rows := make([][]float64, len(dom))
		for i, iv := range dom {
			rows[i] = []float64{iv[0], iv[1]}
		}
		a.Rows["domain"] = rows
	}
	if ref := b.Reference(); ref != nil {
		a.Floats["reference"] = ref
	}
	switch v := s.(type) {
	case *sample.Rectangle:
		if mins, maxes := v.Bounds(); len(mins) > 0 {
			a.Rows["region_mins"], a.Rows["region_maxes"] = mins, maxes
		}
	case *sample.Cartesian:
		if mins, maxes := v.Bounds(); len(mins) > 0 {
			a.Rows["region_mins"], a.Rows["region_maxes"] = mins, maxes
		}
	case *sample.Ball:
		if centers, radii := v.Balls(); len(centers) > 0 {
			a.Rows["ball_centers"], a.Floats["ball_radii"] = centers, radii
		}
	}

	putRows := func(key string, rows [][]float64) {
		if rows != nil {
			a.Rows[key] = rows
		}
	}
	putFloats := func(key string, vals []float64) {
		if vals != nil {
			a.Floats[key] = vals
		}
	}
	putInts := func(key string, vals []int) {
		if vals != nil {
			a.Ints[key] = vals
		}
	}
	if local {
		putRows("values", b.ValuesLocal())
		putRows("error_estimates", b.ErrorEstimatesLocal())
		putFloats("volumes", b.VolumesLocal())
		putFloats("probabilities", b.ProbabilitiesLocal())
		putFloats("densities", b.DensitiesLocal())
		putFloats("radii", b.RadiiLocal())
		putFloats("normalized_radii", b.NormalizedRadiiLocal())
		putInts("region", b.RegionLocal())
		putInts("error_id", b.ErrorIDLocal())
		if j := b.JacobiansLocal(); j != nil {
			a.Blocks["jacobians"] = j
		}
	} else {
		putRows("values", b.Values())
		putRows("error_estimates", b.ErrorEstimates())
		putFloats("volumes", b.Volumes())
		putFloats("probabilities", b.Probabilities())
		putFloats("densities", b.Densities())
		putFloats("radii", b.Radii())
		putFloats("normalized_radii", b.NormalizedRadii())
		putInts("region", b.Region())
		putInts("error_id", b.ErrorID())
		if j := b.Jacobians(); j != nil {
			a.Blocks["jacobians"] = j
		}
	}
	return a
}

// setFromArchive rebuilds a set from its global arrays.
func setFromArchive(a *Archive) (sample.Set, error) {
	dim := int(a.Scalars["dim"])
	opt := sample.DefaultOptions
	opt.PNorm = a.Scalars["p_norm"]

	var s sample.Set
	switch variant := a.Labels["variant"]; variant {
	case "voronoi":
		s = sample.NewVoronoiWithOptions(dim, opt)
	case "rectangle":
		s = sample.NewRectangleWithOptions(dim, opt)
	case "cartesian":
		s = sample.NewCartesianWithOptions(dim, opt)
	case "ball":
		s = sample.NewBallWithOptions(dim, opt)
	default:
		return nil, fmt.Errorf("persist: unknown set variant %q", variant)
	}
	b := s.SampleBase()

	if rows, ok := a.Rows["domain"]; ok {
		dom := make(sample.Domain, len(rows))
		for i, r := range rows {
			dom[i] = [2]float64{r[0], r[1]}
		}
		if err := b.SetDomain(dom); err != nil {
			return nil, err
		}
	}

	// Fixed-region geometry is re-established before the arrays land so the
	// complement value picks up the domain center.
	switch v := s.(type) {
	case *sample.Rectangle:
		if mins, ok := a.Rows["region_mins"]; ok {
			if err := v.Setup(mins, a.Rows["region_maxes"]); err != nil {
				return nil, err
			}
		}
	case *sample.Cartesian:
		if mins, ok := a.Rows["region_mins"]; ok {
			if err := v.Setup(mins, a.Rows["region_maxes"]); err != nil {
				return nil, err
			}
		}
	case *sample.Ball:
		if centers, ok := a.Rows["ball_centers"]; ok {
			if err := v.Setup(centers, a.Floats["ball_radii"]); err != nil {
				return nil, err
			}
		}
	}

	if ref, ok := a.Floats["reference"]; ok {
		if err := b.SetReference(ref); err != nil {
			return nil, err
		}
	}
	if rows, ok := a.Rows["values"]; ok {
		if err := b.SetValues(rows); err != nil {
			return nil, err
		}
	}
	if rows, ok := a.Rows["error_estimates"]; ok {
		if err := b.SetErrorEstimates(rows); err != nil {
			return nil, err
		}
	}
	if blocks, ok := a.Blocks["jacobians"]; ok {
		if err := b.SetJacobians(blocks); err != nil {
			return nil, err
		}
	}
	if vals, ok := a.Floats["volumes"]; ok {
		b.SetVolumes(vals)
	}
	if vals, ok := a.Floats["probabilities"]; ok {
		b.SetProbabilities(vals)
	}
	if vals, ok := a.Floats["densities"]; ok {
		b.SetDensities(vals)
	}
	if vals, ok := a.Floats["radii"]; ok {
		b.SetRadii(vals)
	}
	if vals, ok := a.Floats["normalized_radii"]; ok {
		b.SetNormalizedRadii(vals)
	}
	if vals, ok := a.Ints["region"]; ok {
		b.SetRegion(vals)
	}
	if vals, ok := a.Ints["error_id"]; ok {
		b.SetErrorID(vals)
	}
	b.GlobalToLocal()
	return s, nil
}

// discSlots are the storable sample-set slots of a discretization, in the
// order they are written.
var discSlots = []string{"input", "output", "emulated_input", "emulated_output", "output_probability"}

func discSlotSets(d *sample.Discretization) []sample.Set {
	return []sample.Set{
		d.Input(),
		d.Output(),
		d.EmulatedInput(),
		d.EmulatedOutput(),
		d.OutputProbability(),
	}
}

// SaveDiscretization writes each attached sample set under "{name}.{slot}".
// Slots that are empty are deleted so a reload does not resurrect a set from
// an earlier save. Pointers and iteration records are runtime state;
// recompute the pointers after loading.
func SaveDiscretization(store Store, name string, d *sample.Discretization) error {
	sets := discSlotSets(d)
	for i, slot := range discSlots {
		key := name + "." + slot
		if sets[i] == nil {
			if err := store.Delete(key); err != nil {
				return err
			}
			continue
		}
		if err := SaveSet(store, key, sets[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadDiscretization reconstructs a discretization saved with
// SaveDiscretization. Only the input slot is required.
func LoadDiscretization(store Store, name string) (*sample.Discretization, error) {
	sets := make([]sample.Set, len(discSlots))
	for i, slot := range discSlots {
		s, err := LoadSet(store, name+"."+slot)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sets[i] = s
	}
	return assembleDiscretization(sets)
}

// SaveDiscretizationShards writes each attached set's shard for this worker,
// under "proc{rank}_{name}.{slot}".
func SaveDiscretizationShards(store Store, name string, d *sample.Discretization) error {
	sets := discSlotSets(d)
	for i, slot := range discSlots {
		if sets[i] == nil {
			continue
		}
		if err := SaveSetShards(store, name+"."+slot, sets[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadDiscretizationShards reassembles a discretization saved with
// SaveDiscretizationShards, re-sharding every set for comm.
func LoadDiscretizationShards(store Store, name string, comm parallel.Comm) (*sample.Discretization, error) {
	sets := make([]sample.Set, len(discSlots))
	for i, slot := range discSlots {
		s, err := LoadSetShards(store, name+"."+slot, comm)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sets[i] = s
	}
	return assembleDiscretization(sets)
}

func assembleDiscretization(sets []sample.Set) (*sample.Discretization, error) {
	d, err := sample.NewDiscretization(sets[0], sets[1])
	if err != nil {
		return nil, err
	}
	if sets[2] != nil {
		d.SetEmulatedInput(sets[2])
	}
	if sets[3] != nil {
		d.SetEmulatedOutput(sets[3])
	}
	if sets[4] != nil {
		d.SetOutputProbability(sets[4])
	}
	return d, nil
}
