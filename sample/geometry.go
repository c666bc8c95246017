package sample

// Planar geometry used by the exact two-dimensional volume computation:
// Voronoi cells are obtained by clipping the domain rectangle against the
// perpendicular bisector of each generator pair, and measured with the
// shoelace formula.

type point2 struct{ x, y float64 }

// domainPolygon returns the domain rectangle in counterclockwise order.
func domainPolygon(d Domain) []point2 {
	return []point2{
		{d[0][0], d[1][0]},
		{d[0][1], d[1][0]},
		{d[0][1], d[1][1]},
		{d[0][0], d[1][1]},
	}
}

// clipHalfPlane intersects poly with the half-plane of points at least as
// close to g as to h, the Voronoi dominance region of g over h.
func clipHalfPlane(poly []point2, g, h []float64) []point2 {
	// Half-plane n.x <= c with n = h - g through the bisector midpoint.
	nx := h[0] - g[0]
	ny := h[1] - g[1]
	mx := (g[0] + h[0]) / 2
	my := (g[1] + h[1]) / 2
	c := nx*mx + ny*my

	inside := func(p point2) bool { return nx*p.x+ny*p.y <= c }
	cross := func(a, b point2) point2 {
		// Intersection of segment ab with the bisector line.
		da := nx*a.x + ny*a.y - c
		db := nx*b.x + ny*b.y - c
		t := da / (da - db)
		return point2{a.x + t*(b.x-a.x), a.y + t*(b.y-a.y)}
	}

	out := make([]point2, 0, len(poly)+1)
	for i, cur := range poly {
		prev := poly[(i+len(poly)-1)%len(poly)]
		switch {
		case inside(cur) && inside(prev):
			out = append(out, cur)
		case inside(cur) && !inside(prev):
			out = append(out, cross(prev, cur), cur)
		case !inside(cur) && inside(prev):
			out = append(out, cross(prev, cur))
		}
	}
	return out
}

// polygonArea returns the unsigned shoelace area.
func polygonArea(poly []point2) float64 {
	if len(poly) < 3 {
		return 0
	}
	s := 0.0
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		s += p.x*q.y - q.x*p.y
	}
	if s < 0 {
		s = -s
	}
	return s / 2
}
