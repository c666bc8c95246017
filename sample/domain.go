package sample

import "math"

// Domain is an axis-aligned box, one [min, max] interval per dimension.
type Domain [][2]float64

// UnitBox returns the unit box [0, 1]^dim.
func UnitBox(dim int) Domain {
	d := make(Domain, dim)
	for i := range d {
		d[i] = [2]float64{0, 1}
	}
	return d
}

// Dim returns the number of dimensions.
func (d Domain) Dim() int { return len(d) }

// Width returns the per-dimension side lengths.
func (d Domain) Width() []float64 {
	w := make([]float64, len(d))
	for i, iv := range d {
		w[i] = iv[1] - iv[0]
	}
	return w
}

// Volume returns the Lebesgue volume of the box.
func (d Domain) Volume() float64 {
	v := 1.0
	for _, iv := range d {
		v *= iv[1] - iv[0]
	}
	return v
}

// Center returns the box midpoint.
func (d Domain) Center() []float64 {
	c := make([]float64, len(d))
	for i, iv := range d {
		c[i] = (iv[0] + iv[1]) / 2
	}
	return c
}

// Contains reports whether x lies inside the box (boundaries inclusive).
func (d Domain) Contains(x []float64) bool {
	for i, iv := range d {
		if x[i] < iv[0] || x[i] > iv[1] {
			return false
		}
	}
	return true
}

// Equal reports whether two domains match exactly.
func (d Domain) Equal(other Domain) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// Copy returns a deep copy.
func (d Domain) Copy() Domain {
	if d == nil {
		return nil
	}
	out := make(Domain, len(d))
	copy(out, d)
	return out
}

// Finite reports whether every bound is finite.
func (d Domain) Finite() bool {
	for _, iv := range d {
		if math.IsInf(iv[0], 0) || math.IsInf(iv[1], 0) ||
			math.IsNaN(iv[0]) || math.IsNaN(iv[1]) {
			return false
		}
	}
	return true
}
