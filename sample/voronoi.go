package sample

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hupe1980/pullback/parallel"
)

// Voronoi is the default sample-set geometry: cells are implicit Voronoi
// regions of the sample points under the set's p-norm.
type Voronoi struct {
	Base
}

var _ Set = (*Voronoi)(nil)

// NewVoronoi returns an empty Voronoi set of the given dimension with
// default options.
func NewVoronoi(dim int) *Voronoi {
	return NewVoronoiWithOptions(dim, DefaultOptions)
}

// NewVoronoiWithOptions returns an empty Voronoi set with the given options.
func NewVoronoiWithOptions(dim int, opt Options) *Voronoi {
	v := &Voronoi{Base: newBase(dim, opt)}
	v.self = v
	return v
}

// Variant returns "voronoi".
func (v *Voronoi) Variant() string { return "voronoi" }

// Copy returns a deep copy.
func (v *Voronoi) Copy() Set {
	out := &Voronoi{}
	out.self = out
	v.copyInto(&out.Base)
	return out
}

// Query returns the k nearest sample points to each query point under the
// set's p-norm, ties broken by lowest index. For the Euclidean norm a
// kd-tree is used; other norms fall back to a scan, since kd-tree pruning
// is only valid under the Euclidean metric.
func (v *Voronoi) Query(x [][]float64, k int) ([][]float64, [][]int, error) {
	if len(v.values) == 0 {
		return nil, nil, ErrNoValues
	}
	if k > len(v.values) {
		k = len(v.values)
	}
	if k < 1 {
		k = 1
	}
	dists := make([][]float64, len(x))
	indices := make([][]int, len(x))
	for i, q := range x {
		if len(q) != v.dim {
			return nil, nil, &ErrDimensionMismatch{Expected: v.dim, Actual: len(q)}
		}
		d, idx := v.nearest(q, k)
		dists[i] = d
		indices[i] = idx
	}
	return dists, indices, nil
}

func (v *Voronoi) nearest(q []float64, k int) ([]float64, []int) {
	if v.pNorm == 2 {
		v.ensureTree()
		keeper := kdtree.NewNKeeper(k)
		v.tree.NearestSet(keeper, kdPoint{coords: q})
		type hit struct {
			dist float64
			idx  int
		}
		hits := make([]hit, 0, k)
		for _, cd := range keeper.Heap {
			if cd.Comparable == nil {
				continue
			}
			p := cd.Comparable.(kdPoint)
			hits = append(hits, hit{dist: math.Sqrt(cd.Dist), idx: p.index})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].dist != hits[j].dist {
				return hits[i].dist < hits[j].dist
			}
			return hits[i].idx < hits[j].idx
		})
		d := make([]float64, len(hits))
		idx := make([]int, len(hits))
		for i, h := range hits {
			d[i] = h.dist
			idx[i] = h.idx
		}
		return d, idx
	}
	return v.scanNearest(q, k)
}

// scanNearest is the exact fallback for non-Euclidean norms.
func (v *Voronoi) scanNearest(q []float64, k int) ([]float64, []int) {
	n := len(v.values)
	order := make([]int, n)
	all := make([]float64, n)
	for i, x := range v.values {
		order[i] = i
		all[i] = minkowski(q, x, v.pNorm)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return all[order[i]] < all[order[j]]
	})
	d := make([]float64, k)
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		idx[i] = order[i]
		d[i] = all[order[i]]
	}
	return d, idx
}

func (v *Voronoi) ensureTree() {
	if !v.treeDirty && v.tree != nil {
		return
	}
	pts := make(kdPoints, len(v.values))
	for i, x := range v.values {
		pts[i] = kdPoint{coords: x, index: i}
	}
	v.tree = &nnIndex{Tree: kdtree.New(pts, false)}
	v.treeDirty = false
}

// minkowski returns the p-norm distance; +Inf p gives the Chebyshev norm.
func minkowski(a, b []float64, p float64) float64 {
	if math.IsInf(p, 1) {
		m := 0.0
		for i := range a {
			if d := math.Abs(a[i] - b[i]); d > m {
				m = d
			}
		}
		return m
	}
	s := 0.0
	for i := range a {
		s += math.Pow(math.Abs(a[i]-b[i]), p)
	}
	return math.Pow(s, 1/p)
}

// Merge returns a Voronoi set over the union of both sets' points. The sets
// must share dimension and domain.
func (v *Voronoi) Merge(other Set) (Set, error) {
	if other.Dim() != v.dim {
		return nil, &ErrDimensionMismatch{Expected: v.dim, Actual: other.Dim()}
	}
	ob := other.SampleBase()
	if v.domain != nil && ob.domain != nil && !v.domain.Equal(ob.domain) {
		return nil, ErrDomainMismatch
	}
	out := NewVoronoiWithOptions(v.dim, Options{
		PNorm: v.pNorm, Comm: v.comm, Logger: v.logger,
	})
	out.domain = v.domain.Copy()
	merged := append(copyRows(v.values), copyRows(ob.values)...)
	if err := out.SetValues(merged); err != nil {
		return nil, err
	}
	out.GlobalToLocal()
	return out, nil
}

// ExactVolume1D computes exact cell volumes for a one-dimensional set: each
// cell spans the midpoints to its sorted neighbors, clipped to the domain,
// normalized by the domain width.
func (v *Voronoi) ExactVolume1D() error {
	if v.dim != 1 {
		return &ErrDimensionMismatch{Expected: 1, Actual: v.dim}
	}
	if v.domain == nil {
		return ErrNoDomain
	}
	n, err := v.CheckNum()
	if err != nil {
		return err
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return v.values[order[i]][0] < v.values[order[j]][0]
	})

	lo, hi := v.domain[0][0], v.domain[0][1]
	edges := make([]float64, n+1)
	edges[0] = lo
	for i := 1; i < n; i++ {
		edges[i] = (v.values[order[i-1]][0] + v.values[order[i]][0]) / 2
	}
	edges[n] = hi

	vol := make([]float64, n)
	width := hi - lo
	for i, idx := range order {
		vol[idx] = (edges[i+1] - edges[i]) / width
	}
	v.volumes = vol
	v.GlobalToLocal()
	return nil
}

// ExactVolume2D computes exact cell volumes for a two-dimensional set by
// clipping the domain rectangle against the perpendicular bisectors of every
// other sample point and measuring the remaining polygon. The volumes
// partition the domain and sum to one.
func (v *Voronoi) ExactVolume2D() error {
	if v.dim != 2 {
		return &ErrDimensionMismatch{Expected: 2, Actual: v.dim}
	}
	if v.domain == nil {
		return ErrNoDomain
	}
	n, err := v.CheckNum()
	if err != nil {
		return err
	}
	box := domainPolygon(v.domain)
	total := v.domain.Volume()

	vol := make([]float64, n)
	for i, gi := range v.values {
		cell := box
		for j, gj := range v.values {
			if j == i {
				continue
			}
			cell = clipHalfPlane(cell, gi, gj)
			if len(cell) == 0 {
				break
			}
		}
		vol[i] = polygonArea(cell) / total
	}
	v.volumes = vol
	v.GlobalToLocal()
	return nil
}

// EstimateRadii estimates each cell's radius, the largest distance from the
// cell's generator to a point of the cell, from nMC uniform domain draws
// shared across the workers. Both raw and width-normalized radii are stored.
func (v *Voronoi) EstimateRadii(nMC int) error {
	if v.domain == nil {
		return ErrNoDomain
	}
	n, err := v.CheckNum()
	if err != nil {
		return err
	}
	width := v.domain.Width()

	share := parallel.ShareCount(nMC, v.comm.Size(), v.comm.Rank())
	cloud := v.uniformInDomain(share)
	_, idx, err := v.Query(cloud, 1)
	if err != nil {
		return err
	}

	rad := make([]float64, n)
	nrad := make([]float64, n)
	diff := make([]float64, v.dim)
	zero := make([]float64, v.dim)
	for m, x := range cloud {
		i := idx[m][0]
		g := v.values[i]
		if r := minkowski(x, g, v.pNorm); r > rad[i] {
			rad[i] = r
		}
		for d := range diff {
			diff[d] = (x[d] - g[d]) / width[d]
		}
		if r := minkowski(diff, zero, v.pNorm); r > nrad[i] {
			nrad[i] = r
		}
	}
	v.radii = v.comm.AllReduceMax(rad)
	v.normalizedRadii = v.comm.AllReduceMax(nrad)
	v.GlobalToLocal()
	return nil
}

// EstimateRadiiAndVolume estimates radii and Monte Carlo cell volumes from
// the same uniform domain cloud.
func (v *Voronoi) EstimateRadiiAndVolume(nMC int) error {
	if err := v.EstimateRadii(nMC); err != nil {
		return err
	}
	return v.EstimateVolume(nMC)
}

// EstimateLocalVolume estimates each local cell's volume by rejection
// sampling in the Lp ball around its generator, in width-normalized
// coordinates. Draws falling outside the domain are discarded, so boundary
// cells are measured as cell intersected with domain, and the combined
// volumes are normalized to sum to one. The per-cell point budget starts at
// ten draws and grows by factors of ten until numEmulateLocal draws land in
// the cell or the budget reaches maxNumEmulate; exhausting the budget
// degrades precision and is logged, never an error.
func (v *Voronoi) EstimateLocalVolume(numEmulateLocal, maxNumEmulate int) error {
	if v.domain == nil {
		return ErrNoDomain
	}
	n, err := v.CheckNum()
	if err != nil {
		return err
	}
	if v.valuesLocal == nil {
		v.GlobalToLocal()
	}
	width := v.domain.Width()
	left := make([]float64, v.dim)
	for d, iv := range v.domain {
		left[d] = iv[0]
	}
	normalize := func(x []float64) []float64 {
		out := make([]float64, len(x))
		for d := range x {
			out[d] = (x[d] - left[d]) / width[d]
		}
		return out
	}
	normed := make([][]float64, n)
	for i, x := range v.values {
		normed[i] = normalize(x)
	}
	lookup := NewVoronoiWithOptions(v.dim, Options{PNorm: v.pNorm, Logger: v.logger})
	if err := lookup.SetValues(normed); err != nil {
		return err
	}

	radii := v.sampleRadii(normed)

	inBox := func(x []float64) bool {
		for _, c := range x {
			if c < 0 || c > 1 {
				return false
			}
		}
		return true
	}

	volLocal := make([]float64, len(v.valuesLocal))
	for li, gi := range v.localIndices() {
		r := radii[gi]
		center := normed[gi]
		inCell, drawn := 0, 0
		for total := 10; ; total *= 10 {
			// Draws outside the domain count toward the total but can
			// never land in the cell.
			batch := make([][]float64, 0, total-drawn)
			for m := drawn; m < total; m++ {
				if x := v.sampleLpBall(center, r); inBox(x) {
					batch = append(batch, x)
				}
			}
			_, idx, qerr := lookup.Query(batch, 1)
			if qerr != nil {
				return qerr
			}
			for _, row := range idx {
				if row[0] == gi {
					inCell++
				}
			}
			drawn = total
			if inCell >= numEmulateLocal {
				break
			}
			if drawn >= maxNumEmulate {
				v.logger.Warn("local volume budget exhausted",
					"cell", gi, "in_cell", inCell, "drawn", drawn)
				break
			}
		}
		volLocal[li] = float64(inCell) / float64(drawn) * lpBallVolume(r, v.pNorm, v.dim)
	}
	sum := v.comm.AllReduceSum([]float64{floats.Sum(volLocal)})[0]
	if sum > 0 {
		floats.Scale(1/sum, volLocal)
	}
	v.volumesLocal = volLocal
	v.LocalToGlobal()
	return nil
}

// sampleRadii returns the per-cell sampling radii in normalized coordinates:
// 1.5 times the estimated normalized radii when available, with non-positive
// or missing entries replaced by twice the standard deviation of the
// nearest-neighbor distances.
func (v *Voronoi) sampleRadii(normed [][]float64) []float64 {
	n := len(normed)
	radii := make([]float64, n)
	havePositive := false
	if v.normalizedRadii != nil {
		for i, r := range v.normalizedRadii {
			radii[i] = 1.5 * r
			if radii[i] > 0 {
				havePositive = true
			}
		}
	}
	if v.normalizedRadii != nil && havePositive {
		allPositive := true
		for _, r := range radii {
			if r <= 0 {
				allPositive = false
				break
			}
		}
		if allPositive {
			return radii
		}
	}

	// Nearest-neighbor distance spread as the fallback scale.
	dists := make([]float64, n)
	for i := range normed {
		best := math.Inf(1)
		for j := range normed {
			if j == i {
				continue
			}
			if d := minkowski(normed[i], normed[j], v.pNorm); d < best {
				best = d
			}
		}
		dists[i] = best
	}
	mean := 0.0
	for _, d := range dists {
		mean += d
	}
	mean /= float64(n)
	variance := 0.0
	for _, d := range dists {
		variance += (d - mean) * (d - mean)
	}
	fallback := 2 * math.Sqrt(variance/float64(n))
	if fallback <= 0 {
		fallback = mean
	}
	for i := range radii {
		if radii[i] <= 0 {
			radii[i] = fallback
		}
	}
	return radii
}

// localIndices returns the global indices of the local shard, deriving the
// contiguous block when GlobalToLocal has not recorded one.
func (b *Base) localIndices() []int {
	if b.localIndex != nil {
		return b.localIndex
	}
	out := make([]int, len(b.valuesLocal))
	for i := range out {
		out[i] = i
	}
	return out
}

// sampleLpBall draws one point uniformly from the Lp ball of the given
// radius around center.
func (v *Voronoi) sampleLpBall(center []float64, r float64) []float64 {
	dim := len(center)
	x := make([]float64, dim)
	if math.IsInf(v.pNorm, 1) {
		for d := range x {
			x[d] = center[d] + r*(2*v.randFloat()-1)
		}
		return x
	}
	g := make([]float64, dim)
	norm := 0.0
	gamma := distuv.Gamma{Alpha: 1 / v.pNorm, Beta: 1, Src: v.src()}
	for d := range g {
		mag := math.Pow(gamma.Rand(), 1/v.pNorm)
		if v.randFloat() < 0.5 {
			mag = -mag
		}
		g[d] = mag
		norm += math.Pow(math.Abs(mag), v.pNorm)
	}
	norm = math.Pow(norm, 1/v.pNorm)
	scale := r * math.Pow(v.randFloat(), 1/float64(dim)) / norm
	for d := range x {
		x[d] = center[d] + scale*g[d]
	}
	return x
}

// lpBallVolume returns the Lebesgue volume of the Lp ball of radius r in
// dim dimensions.
func lpBallVolume(r, p float64, dim int) float64 {
	d := float64(dim)
	if math.IsInf(p, 1) {
		return math.Pow(2*r, d)
	}
	return math.Pow(2*r, d) * math.Pow(math.Gamma(1+1/p), d) / math.Gamma(1+d/p)
}

// uniformInDomain draws n points uniformly from the set's domain.
func (b *Base) uniformInDomain(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		x := make([]float64, b.dim)
		for d, iv := range b.domain {
			x[d] = iv[0] + (iv[1]-iv[0])*b.randFloat()
		}
		out[i] = x
	}
	return out
}

func (b *Base) randFloat() float64 {
	if b.rng != nil {
		return b.rng.Float64()
	}
	return rand.Float64()
}

func (b *Base) src() rand.Source {
	if b.rng != nil {
		return b.rng
	}
	return nil
}

// nnIndex wraps the kd-tree used for Euclidean nearest-neighbor queries.
type nnIndex struct {
	*kdtree.Tree
}

// kdPoint adapts a sample point to the kd-tree's Comparable.
type kdPoint struct {
	coords []float64
	index  int
}

var _ kdtree.Comparable = kdPoint{}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	return p.coords[d] - q.coords[d]
}

func (p kdPoint) Dims() int { return len(p.coords) }

func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	s := 0.0
	for i := range p.coords {
		d := p.coords[i] - q.coords[i]
		s += d * d
	}
	return s
}

// kdPoints adapts a point slice to the kd-tree's Interface.
type kdPoints []kdPoint

var _ kdtree.Interface = kdPoints{}

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }

func (p kdPoints) Len() int { return len(p) }

func (p kdPoints) Pivot(d kdtree.Dim) int {
	return kdPlane{Dim: d, kdPoints: p}.Pivot()
}

func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// kdPlane sorts kdPoints along a dimension for pivoting.
type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].coords[p.Dim] < p.kdPoints[j].coords[p.Dim]
}

func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}
